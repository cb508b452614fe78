// Package tavily は Tavily Search API を使用した research.Searcher 実装を提供する
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jinford/blog-rag/internal/core/research"
)

const (
	// DefaultBaseURL はTavily APIのエンドポイント
	DefaultBaseURL = "https://api.tavily.com"

	// DefaultTimeout は1回の検索リクエストのタイムアウト
	DefaultTimeout = 30 * time.Second

	// searchDepth は常にadvancedを使用する（本文抽出の品質が高い）
	searchDepth = "advanced"
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Tavily API key not set: please set TAVILY_API_KEY environment variable")

// Client は Tavily Search API クライアント
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithBaseURL はAPIエンドポイントを上書きする（テスト用）
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPTimeout はリクエストタイムアウトを設定する
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ research.Searcher = (*Client)(nil)

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

// Search はクエリでWeb検索を実行し、本文付きのドキュメントを返す
// raw_contentが取得できた結果はそちらを本文として優先する
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]research.Document, error) {
	body, err := json.Marshal(searchRequest{
		Query:             query,
		SearchDepth:       searchDepth,
		MaxResults:        maxResults,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search request returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	documents := make([]research.Document, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		content := result.Content
		if result.RawContent != "" {
			content = result.RawContent
		}
		documents = append(documents, research.Document{
			URL:     result.URL,
			Title:   result.Title,
			Content: content,
			Score:   result.Score,
		})
	}
	return documents, nil
}
