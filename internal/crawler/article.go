package crawler

// articleSelectors 是单个站点文章页各字段的选择器回退链。
type articleSelectors struct {
	title       fieldChain
	description fieldChain
	image       fieldChain
	author      fieldChain
	date        fieldChain
}

// parseArticle 按站点的选择器链解析文章页。
// 没有标题或没有达标图片的文章直接丢弃，不入库。
func parseArticle(page *Page, site, baseURL string, sels articleSelectors) (*Item, error) {
	doc := page.Doc

	title := CleanText(sels.title.text(doc))
	if title == "" {
		return nil, ErrNoTitle
	}

	primary := imageFromChain(doc, sels.image, baseURL)
	if primary == "" {
		return nil, ErrNoQualityImage
	}

	description := CleanText(sels.description.text(doc))

	return &Item{
		Title:            title,
		Description:      description,
		PrimaryImageURL:  primary,
		SourceURL:        page.URL,
		SourceSite:       site,
		Category:         Categorize(page.URL, title, description),
		Tags:             extractTags(doc, title, description),
		PublishedAt:      dateFromChain(doc, sels.date),
		AdditionalImages: additionalImages(doc, baseURL, primary),
		Author:           CleanText(sels.author.text(doc)),
	}, nil
}
