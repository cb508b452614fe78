package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

const (
	// DefaultTopK は類似検索で返すチャンク数のデフォルト
	DefaultTopK = 4

	// embedBatchSize はインデックス構築時のEmbedding APIバッチサイズ
	embedBatchSize = 100
)

var (
	// ErrNoChunks はドキュメントから1つもチャンクが作れなかった場合のエラー
	ErrNoChunks = errors.New("no chunks produced from research documents")

	// ErrEmptyIndex は空のインデックスへの検索エラー
	ErrEmptyIndex = errors.New("retrieval index is empty")
)

// Embedder はテキストをベクトル表現に変換するインターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingをまとめて生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index は1ジョブ実行内に閉じたインメモリの類似検索インデックス
// ジョブ実行が終われば破棄され、永続化されない
type Index struct {
	chunks   []Chunk
	embedder Embedder
}

// Builder は調査ドキュメントからインデックスを構築する
type Builder struct {
	chunker  *Chunker
	embedder Embedder
	logger   *slog.Logger
}

// NewBuilder は新しい Builder を作成する
func NewBuilder(chunker *Chunker, embedder Embedder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		chunker:  chunker,
		embedder: embedder,
		logger:   logger,
	}
}

// Document はインデックス構築に渡す調査ドキュメントの最小形
type Document struct {
	URL     string
	Title   string
	Content string
}

// Build はドキュメントをチャンク化し、Embeddingを付与してインデックスを構築する
// チャンク列はドキュメント順・区間順で安定している
func (b *Builder) Build(ctx context.Context, docs []Document) (*Index, error) {
	var chunks []Chunk
	for _, doc := range docs {
		for _, span := range b.chunker.Split(doc.Content) {
			chunks = append(chunks, Chunk{
				Ordinal:     len(chunks),
				Text:        span,
				SourceURL:   doc.URL,
				SourceTitle: doc.Title,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	// バッチ単位でEmbeddingを生成する
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := b.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(vectors))
		}

		for i, vector := range vectors {
			chunks[start+i].Embedding = vector
		}
	}

	b.logger.Debug("retrieval index built", "documents", len(docs), "chunks", len(chunks))

	return &Index{chunks: chunks, embedder: b.embedder}, nil
}

// Len はインデックス内のチャンク数を返す
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Chunks はインデックス内の全チャンクを元の順序で返す
func (idx *Index) Chunks() []Chunk {
	return idx.chunks
}

// Query はテキストに類似する上位k件のチャンクを返す
// 結果は類似度の降順で、同点は元のチャンク順で安定している
func (idx *Index) Query(ctx context.Context, text string, k int) ([]ScoredChunk, error) {
	if len(idx.chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		scored = append(scored, ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity は2ベクトルのコサイン類似度を返す
// 次元不一致やゼロベクトルは類似度0として扱う
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
