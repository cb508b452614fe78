package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/blog-rag/internal/core/retrieval"
	"github.com/jinford/blog-rag/internal/core/worker"
	"github.com/jinford/blog-rag/internal/platform/database"
)

// ResearchArchive は調査チャンクを pgvector カラム付きで永続化する
// ジョブ実行後の分析やデバッグ用であり、検索パスはインメモリインデックスのみを使う
type ResearchArchive struct {
	db *database.Database
}

// NewResearchArchive は新しい ResearchArchive を作成します
func NewResearchArchive(db *database.Database) *ResearchArchive {
	return &ResearchArchive{db: db}
}

var _ worker.ResearchArchiver = (*ResearchArchive)(nil)

func (a *ResearchArchive) ArchiveChunks(ctx context.Context, jobID uuid.UUID, chunks []retrieval.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(`
			INSERT INTO research_chunks (job_id, ordinal, content, source_url, source_title, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			jobID, chunk.Ordinal, chunk.Text, chunk.SourceURL, chunk.SourceTitle, pgvector.NewVector(chunk.Embedding),
		)
	}

	results := a.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert research chunk at index %d: %w", i, err)
		}
	}
	return nil
}

// ListChunksByJob はジョブに紐づく保存済みチャンクを順序どおりに返す
func (a *ResearchArchive) ListChunksByJob(ctx context.Context, jobID uuid.UUID) ([]retrieval.Chunk, error) {
	rows, err := a.db.Pool().Query(ctx, `
		SELECT ordinal, content, source_url, source_title, embedding
		FROM research_chunks
		WHERE job_id = $1
		ORDER BY ordinal ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list research chunks: %w", err)
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		var (
			chunk     retrieval.Chunk
			embedding pgvector.Vector
		)
		if err := rows.Scan(&chunk.Ordinal, &chunk.Text, &chunk.SourceURL, &chunk.SourceTitle, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan research chunk: %w", err)
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate research chunks: %w", err)
	}
	return chunks, nil
}
