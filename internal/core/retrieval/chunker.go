package retrieval

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSize はチャンクあたりのデフォルトトークン数
	DefaultChunkSize = 250
	// DefaultChunkOverlap は隣接チャンク間のデフォルトオーバーラップトークン数
	DefaultChunkOverlap = 50
)

// Chunker はテキストをオーバーラップ付きのトークン区間に分割する
// 同一入力と同一パラメータに対して常に同一のチャンク列を返す（純粋関数）
type Chunker struct {
	encoder      *tiktoken.Tiktoken
	chunkSize    int
	chunkOverlap int
}

// NewChunker は新しい Chunker を作成する
// chunkOverlap は chunkSize 未満でなければならない
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}

	// cl100k_baseエンコーダを使用（OpenAIのtext-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		encoder:      encoder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split はテキストをチャンクサイズごとのトークン区間に分割する
// 各チャンクは直前のチャンクと chunkOverlap トークン分重なる
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	if len(tokens) <= c.chunkSize {
		return []string{text}
	}

	step := c.chunkSize - c.chunkOverlap

	var spans []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		spans = append(spans, c.encoder.Decode(tokens[start:end]))

		if end == len(tokens) {
			break
		}
	}

	return spans
}

// TokenCount はテキストのトークン数を返す
func (c *Chunker) TokenCount(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}
