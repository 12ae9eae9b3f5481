package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/looklyy/trendcrawler/internal/crawler"
)

const (
	enrichTimeout  = 20 * time.Second
	maxRespBytes   = 256 * 1024
	descPromptMax  = 500
	model          = "gpt-4"
	maxTokens      = 500
	temperature    = 0.3
	maxKeywords    = 8
	systemPrompt   = "You are a fashion expert and trend analyst. Analyze fashion content and provide structured insights."
	completionPath = "/chat/completions"
)

// Fields 是增强服务返回的补充字段。Confidence 在 (0,1] 区间内时
// 会覆盖基础趋势分。
type Fields struct {
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
}

// Enricher 调用 OpenAI 兼容接口做内容增强。整条链路尽力而为：
// 任何失败都交回调用方降级为未增强内容。
type Enricher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey, baseURL string) *Enricher {
	return &Enricher{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: enrichTimeout},
	}
}

// Enabled 未配置 API key 时增强整体关闭。
func (e *Enricher) Enabled() bool {
	return e != nil && e.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Enhance 请求一次内容增强。出错即返回 error，由调用方降级。
func (e *Enricher) Enhance(ctx context.Context, item *crawler.Item) (*Fields, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("enricher disabled")
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(item)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+completionPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, fmt.Errorf("enrich read: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("enrich decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("enrich: empty choices")
	}

	return parseFields(cr.Choices[0].Message.Content)
}

func buildPrompt(item *crawler.Item) string {
	desc := item.Description
	if rs := []rune(desc); len(rs) > descPromptMax {
		desc = string(rs[:descPromptMax])
	}
	return fmt.Sprintf(`Analyze this fashion content and provide structured insights:

Title: %s
Description: %s
Category: %s
Tags: %s

Respond with a JSON object containing:
1. "summary": a concise 2-3 sentence summary highlighting key fashion trends
2. "keywords": 5-8 specific fashion keywords/trends mentioned
3. "confidence": a 0.0-1.0 score for how trending this content is`,
		item.Title, desc, item.Category, strings.Join(item.Tags, ", "))
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseFields 从模型回复里抠出 JSON 块解析；关键词归一化后限量。
func parseFields(content string) (*Fields, error) {
	block := jsonBlockRe.FindString(content)
	if block == "" {
		return nil, fmt.Errorf("enrich: no json object in response")
	}

	var f Fields
	if err := json.Unmarshal([]byte(block), &f); err != nil {
		return nil, fmt.Errorf("enrich parse: %w", err)
	}

	var kws []string
	seen := make(map[string]bool)
	for _, kw := range f.Keywords {
		kw = crawler.NormalizeTag(kw)
		if kw == "" || seen[kw] || len(kws) >= maxKeywords {
			continue
		}
		seen[kw] = true
		kws = append(kws, kw)
	}
	f.Keywords = kws
	f.Summary = strings.TrimSpace(f.Summary)
	return &f, nil
}
