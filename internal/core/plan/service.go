package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/blog-rag/internal/core/llm"
	"github.com/jinford/blog-rag/internal/core/retrieval"
)

const (
	// schemaRetryBudget はスキーマ違反時の再試行回数
	// 1回だけ厳格プロンプトで再試行し、2回目の失敗はステージ失敗とする
	schemaRetryBudget = 1

	// DefaultTemperature はプラン生成のデフォルト温度
	DefaultTemperature = 0.5
)

// ErrSchemaViolation は再試行後もスキーマに適合する応答が得られなかった場合のエラー
var ErrSchemaViolation = errors.New("plan generation returned schema-violating output")

// Synthesizer はキーワードと検索コンテキストから構造化プランを生成する
type Synthesizer struct {
	llm         llm.Client
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// SynthesizerOption は Synthesizer 構築時のオプション
type SynthesizerOption func(*Synthesizer)

// WithTemperature は生成温度を上書きする
func WithTemperature(t float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// WithMaxTokens は最大生成トークン数を上書きする
func WithMaxTokens(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.maxTokens = n
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer は新しい Synthesizer を作成する
func NewSynthesizer(client llm.Client, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		llm:         client,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize はキーワードと検索コンテキストからBlogPlanを生成する
// スキーマ違反の応答に対しては厳格プロンプトで1回だけ再試行する
// クライアントが llm.ErrInvalidResponseFormat を返した場合もスキーマ違反として扱う
func (s *Synthesizer) Synthesize(ctx context.Context, keyword string, contexts []retrieval.ScoredChunk) (*BlogPlan, error) {
	prompt := buildPlanPrompt(keyword, contexts)

	var lastErr error
	for attempt := 0; attempt <= schemaRetryBudget; attempt++ {
		resp, err := s.llm.GenerateCompletion(ctx, llm.CompletionRequest{
			Prompt:         prompt,
			Temperature:    s.temperature,
			MaxTokens:      s.maxTokens,
			ResponseFormat: "json",
		})
		if err != nil && !errors.Is(err, llm.ErrInvalidResponseFormat) {
			// LLM呼び出し自体の失敗はスキーマ再試行の対象外
			return nil, fmt.Errorf("plan generation failed: %w", err)
		}

		if err == nil {
			generated, decodeErr := decodePlan(resp.Content)
			if decodeErr == nil {
				s.logger.Info("blog plan synthesized",
					"keyword", keyword,
					"title", generated.Title,
					"sections", generated.SectionCount(),
					"attempt", attempt+1,
				)
				return generated, nil
			}
			err = decodeErr
		}

		lastErr = err
		s.logger.Warn("plan response violated schema",
			"keyword", keyword,
			"attempt", attempt+1,
			"error", err,
		)
		prompt = buildStrictPlanPrompt(keyword, err)
	}

	return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, lastErr)
}

// decodePlan はLLM応答をパースしてスキーマ検証まで行う
func decodePlan(content string) (*BlogPlan, error) {
	var p BlogPlan
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
