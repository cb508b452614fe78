package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/blog-rag/internal/core/llm"
	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/research"
	"github.com/jinford/blog-rag/internal/core/retrieval"
)

const (
	// DefaultSectionWordBudget はセクション本文の目安語数のデフォルト
	DefaultSectionWordBudget = 300

	// DefaultTemperature はドラフト生成のデフォルト温度
	DefaultTemperature = 0.7
)

// Drafter はプランからセクション単位でブログ本文を生成する
//
// プランジョブのインデックスはそのジョブ実行と共に破棄されるため、
// Drafterは常に自前で調査とインデックス構築をやり直す。
// これによりブログジョブは単独で再現可能になる。
type Drafter struct {
	research    *research.Service
	builder     *retrieval.Builder
	llm         llm.Client
	topK        int
	wordBudget  int
	temperature float64
	logger      *slog.Logger
}

// DrafterOption は Drafter 構築時のオプション
type DrafterOption func(*Drafter)

// WithTopK はセクションごとの検索チャンク数を上書きする
func WithTopK(k int) DrafterOption {
	return func(d *Drafter) {
		if k > 0 {
			d.topK = k
		}
	}
}

// WithWordBudget はセクション本文の目安語数を上書きする
func WithWordBudget(n int) DrafterOption {
	return func(d *Drafter) {
		if n > 0 {
			d.wordBudget = n
		}
	}
}

// WithTemperature は生成温度を上書きする
func WithTemperature(t float64) DrafterOption {
	return func(d *Drafter) {
		d.temperature = t
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) DrafterOption {
	return func(d *Drafter) {
		d.logger = logger
	}
}

// NewDrafter は新しい Drafter を作成する
func NewDrafter(researchSvc *research.Service, builder *retrieval.Builder, client llm.Client, opts ...DrafterOption) *Drafter {
	d := &Drafter{
		research:    researchSvc,
		builder:     builder,
		llm:         client,
		topK:        retrieval.DefaultTopK,
		wordBudget:  DefaultSectionWordBudget,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Draft はプランの全セクションを計画順に生成し、記事全体を組み立てる
// 出力セクションの数と順序は入力プランのセクションと厳密に一致する
func (d *Drafter) Draft(ctx context.Context, p *plan.BlogPlan) (*GeneratedBlog, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blog plan: %w", err)
	}

	// セクションごとの調査クエリで新規にコンテキストを収集する
	index, err := d.buildIndex(ctx, p)
	if err != nil {
		return nil, err
	}

	citations := newCitationSet()

	// Introは導入が扱うべき内容の指示であり、本文はここで生成する
	var intro string
	if p.Intro != "" {
		contexts, err := index.Query(ctx, p.Title, d.topK)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed for introduction: %w", err)
		}
		for _, chunk := range contexts {
			citations.add(chunk.SourceURL)
		}

		intro, err = d.generateIntro(ctx, p, contexts)
		if err != nil {
			return nil, fmt.Errorf("drafting failed for introduction: %w", err)
		}
	}

	sections := make([]GeneratedBlogSection, 0, len(p.Sections))

	for i, sec := range p.Sections {
		contexts, err := index.Query(ctx, sectionQuery(p.Title, sec), d.topK)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed for section %q: %w", sec.Heading, err)
		}
		for _, chunk := range contexts {
			citations.add(chunk.SourceURL)
		}

		content, err := d.generateSection(ctx, p.Title, sec, contexts)
		if err != nil {
			return nil, fmt.Errorf("drafting failed for section %q: %w", sec.Heading, err)
		}

		sections = append(sections, GeneratedBlogSection{
			Index:   i,
			Heading: sec.Heading,
			Content: content,
		})

		d.logger.Info("blog section drafted",
			"section", sec.Heading,
			"index", i,
			"context_chunks", len(contexts),
		)
	}

	blog := &GeneratedBlog{
		Title:     p.Title,
		Intro:     intro,
		Sections:  sections,
		Citations: citations.list(),
	}
	blog.Markdown = assembleMarkdown(blog.Title, blog.Intro, blog.Sections, blog.Citations)

	return blog, nil
}

// buildIndex はセクション見出しごとの調査を実行し、ブログジョブに閉じたインデックスを構築する
// 同一URLのドキュメントは初出のみ採用する
func (d *Drafter) buildIndex(ctx context.Context, p *plan.BlogPlan) (*retrieval.Index, error) {
	seen := make(map[string]struct{})
	var docs []retrieval.Document

	for _, sec := range p.Sections {
		found, err := d.research.Research(ctx, sectionQuery(p.Title, sec))
		if err != nil {
			return nil, fmt.Errorf("research failed for section %q: %w", sec.Heading, err)
		}
		for _, doc := range found {
			if _, ok := seen[doc.URL]; ok {
				continue
			}
			seen[doc.URL] = struct{}{}
			docs = append(docs, retrieval.Document{
				URL:     doc.URL,
				Title:   doc.Title,
				Content: doc.Content,
			})
		}
	}

	index, err := d.builder.Build(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to build retrieval index: %w", err)
	}

	d.logger.Debug("drafting index ready", "documents", len(docs), "chunks", index.Len())

	return index, nil
}

// generateIntro はプランのIntroを指示として導入文を生成する
func (d *Drafter) generateIntro(ctx context.Context, p *plan.BlogPlan, contexts []retrieval.ScoredChunk) (string, error) {
	resp, err := d.llm.GenerateCompletion(ctx, llm.CompletionRequest{
		Prompt:      buildIntroPrompt(p, contexts),
		Temperature: d.temperature,
	})
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", fmt.Errorf("model returned empty introduction")
	}
	return content, nil
}

// generateSection は1セクションの本文を生成する
func (d *Drafter) generateSection(ctx context.Context, title string, sec plan.Section, contexts []retrieval.ScoredChunk) (string, error) {
	resp, err := d.llm.GenerateCompletion(ctx, llm.CompletionRequest{
		Prompt:      buildSectionPrompt(title, sec, contexts, d.wordBudget),
		Temperature: d.temperature,
	})
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", fmt.Errorf("model returned empty section content")
	}
	return content, nil
}

// sectionQuery はセクションの見出しと説明から調査クエリを導出する
func sectionQuery(title string, sec plan.Section) string {
	parts := []string{title, sec.Heading}
	if sec.Description != "" {
		parts = append(parts, sec.Description)
	}
	return strings.Join(parts, " ")
}
