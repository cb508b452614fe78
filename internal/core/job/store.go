package job

import (
	"context"

	"github.com/google/uuid"
)

// Store はジョブレコードの永続化インターフェース
//
// 並行性の契約:
//   - Claim は原子的なcompare-and-swapで、1ジョブにつき成功するのは1回だけ
//   - Complete / Fail は終端状態への原子的遷移で、すでに終端ならno-op（冪等）
//   - Get は直前に完了した書き込みの一貫したスナップショットを返す
type Store interface {
	// Create は新しいジョブを保存する
	Create(ctx context.Context, j *Job) error

	// Get はジョブを取得する。存在しなければ ErrNotFound を返す
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// Claim は未クレームのprocessingジョブにリースを設定する
	// すでにクレーム済み・終端状態の場合は false を返す
	Claim(ctx context.Context, id uuid.UUID, owner string) (bool, error)

	// Complete はジョブを completed に遷移させ、結果を保存する
	// すでに終端状態の場合は何もしない
	Complete(ctx context.Context, id uuid.UUID, result Result) error

	// Fail はジョブを failed に遷移させ、エラーメッセージを保存する
	// すでに終端状態の場合は何もしない
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// ListPending は未クレームのprocessingジョブを作成順に最大limit件返す
	ListPending(ctx context.Context, limit int) ([]*Job, error)
}
