package draft

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/blog-rag/internal/core/llm"
	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/research"
	"github.com/jinford/blog-rag/internal/core/retrieval"
)

// stubSearcher は全クエリに同じドキュメント群を返す
type stubSearcher struct {
	docs    []research.Document
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]research.Document, error) {
	s.queries = append(s.queries, query)
	return s.docs, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

// sectionLLM はセクションごとに識別可能な本文を返す
type sectionLLM struct {
	calls   int
	prompts []string
	empty   bool
}

func (s *sectionLLM) GenerateCompletion(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	if s.empty {
		return llm.CompletionResponse{Content: "   "}, nil
	}
	return llm.CompletionResponse{Content: fmt.Sprintf("section body %d", s.calls)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDrafter(t *testing.T, searcher research.Searcher, client llm.Client, opts ...DrafterOption) *Drafter {
	t.Helper()

	chunker, err := retrieval.NewChunker(100, 20)
	require.NoError(t, err)
	builder := retrieval.NewBuilder(chunker, stubEmbedder{}, discardLogger())
	researchSvc := research.NewService(searcher, research.WithLogger(discardLogger()))

	opts = append(opts, WithLogger(discardLogger()))
	return NewDrafter(researchSvc, builder, client, opts...)
}

func testPlan() *plan.BlogPlan {
	return &plan.BlogPlan{
		Title: "Go Worker Pools Explained",
		Intro: "An introduction to worker pools in Go.",
		Sections: []plan.Section{
			{Heading: "Why worker pools matter", Description: "motivation"},
			{Heading: "Implementing a pool"},
			{Heading: "Common pitfalls"},
		},
	}
}

func TestDrafter_DraftProducesSectionsInPlanOrder(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Title: "A", Content: "worker pool content"},
	}}
	client := &sectionLLM{}
	drafter := newTestDrafter(t, searcher, client)

	p := testPlan()
	blog, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, blog.Sections, len(p.Sections))
	for i, sec := range blog.Sections {
		assert.Equal(t, i, sec.Index)
		assert.Equal(t, p.Sections[i].Heading, sec.Heading)
		assert.NotEmpty(t, sec.Content)
	}
	assert.Equal(t, p.Title, blog.Title)
	assert.NotEmpty(t, blog.Intro)
}

func TestDrafter_IntroPromptCarriesBriefAndLengthGuidance(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	client := &sectionLLM{}
	drafter := newTestDrafter(t, searcher, client)

	p := testPlan()
	p.IntroLengthGuidance = "2-3 sentences"

	blog, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	// 導入文は最初に生成され、指示と長さガイダンスがプロンプトに入る
	require.NotEmpty(t, client.prompts)
	assert.Contains(t, client.prompts[0], p.Intro)
	assert.Contains(t, client.prompts[0], "2-3 sentences")
	assert.Equal(t, len(p.Sections)+1, client.calls)
	assert.Contains(t, blog.Markdown, blog.Intro)
}

func TestDrafter_DraftSkipsIntroWithoutBrief(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	client := &sectionLLM{}
	drafter := newTestDrafter(t, searcher, client)

	p := testPlan()
	p.Intro = ""

	blog, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	assert.Empty(t, blog.Intro)
	assert.Equal(t, len(p.Sections), client.calls)
}

func TestDrafter_DraftResearchQueriesDeriveFromEditedPlan(t *testing.T) {
	// ユーザーが編集した見出しがそのまま調査クエリに使われる
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	drafter := newTestDrafter(t, searcher, &sectionLLM{})

	p := testPlan()
	p.Sections[1].Heading = "Channel-based pool design"

	_, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	joined := strings.Join(searcher.queries, "\n")
	assert.Contains(t, joined, "Channel-based pool design")
	assert.Contains(t, joined, p.Title)
}

func TestDrafter_DraftDedupesCitationsInFirstReferenceOrder(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://first.example", Title: "First", Content: "alpha"},
		{URL: "https://second.example", Title: "Second", Content: "beta"},
	}}
	drafter := newTestDrafter(t, searcher, &sectionLLM{}, WithTopK(4))

	blog, err := drafter.Draft(context.Background(), testPlan())
	require.NoError(t, err)

	// 全セクションが同じソースを参照しても引用は1回ずつ、初出順
	assert.Equal(t, []string{"https://first.example", "https://second.example"}, blog.Citations)

	assert.Contains(t, blog.Markdown, "## Sources")
	assert.Equal(t, 1, strings.Count(blog.Markdown, "https://first.example"))
}

func TestDrafter_DraftMarkdownAssembly(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	drafter := newTestDrafter(t, searcher, &sectionLLM{})

	p := testPlan()
	blog, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(blog.Markdown, "# "+p.Title))
	for _, sec := range p.Sections {
		assert.Contains(t, blog.Markdown, "## "+sec.Heading)
	}

	// セクションはプラン順に出現する
	first := strings.Index(blog.Markdown, "## "+p.Sections[0].Heading)
	last := strings.Index(blog.Markdown, "## "+p.Sections[2].Heading)
	assert.Less(t, first, last)
}

func TestDrafter_DraftFailsOnEmptySectionContent(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	drafter := newTestDrafter(t, searcher, &sectionLLM{empty: true})

	p := testPlan()
	p.Intro = ""
	_, err := drafter.Draft(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty section content")
}

func TestDrafter_DraftFailsOnEmptyIntro(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	drafter := newTestDrafter(t, searcher, &sectionLLM{empty: true})

	_, err := drafter.Draft(context.Background(), testPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "introduction")
}

func TestDrafter_DraftRejectsInvalidPlan(t *testing.T) {
	drafter := newTestDrafter(t, &stubSearcher{}, &sectionLLM{})

	_, err := drafter.Draft(context.Background(), &plan.BlogPlan{Title: "t"})
	require.ErrorIs(t, err, plan.ErrNoSections)
}

func TestDrafter_SectionPromptCarriesWordBudgetAndSubsections(t *testing.T) {
	searcher := &stubSearcher{docs: []research.Document{
		{URL: "https://a.example", Content: "content"},
	}}
	client := &sectionLLM{}
	drafter := newTestDrafter(t, searcher, client, WithWordBudget(150))

	p := testPlan()
	p.Sections[0].Subsections = []plan.Subsection{
		{Heading: "Throughput"},
		{Heading: "Backpressure"},
	}

	_, err := drafter.Draft(context.Background(), p)
	require.NoError(t, err)

	// prompts[0]は導入文、prompts[1]が最初のセクション
	require.Greater(t, len(client.prompts), 1)
	assert.Contains(t, client.prompts[1], "150")
	assert.Contains(t, client.prompts[1], "Throughput")
	assert.Contains(t, client.prompts[1], "Backpressure")
}
