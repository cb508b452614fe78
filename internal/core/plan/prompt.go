package plan

import (
	"fmt"
	"strings"

	"github.com/jinford/blog-rag/internal/core/retrieval"
)

// planPromptTemplate は初回のプラン生成プロンプト
const planPromptTemplate = `You are an expert blog content planner. You must respond ONLY with valid JSON, no other text.

BLOG TOPIC: %s

RESEARCH CONTEXT:
%s

YOUR TASK:
Create a comprehensive blog post structure with a clear outline of sections.

REQUIREMENTS:
1. Create a compelling title that includes the main keyword
2. Decide how many sections the topic needs based on the research context
3. Each section needs a short heading and may have a one-sentence description
4. Add subsections where a section covers several distinct aspects
5. Keep section and subsection order logical for a reader

OUTPUT FORMAT (JSON only):
%s`

// strictPlanPromptTemplate はスキーマ違反後の再試行プロンプト
// 余計な指示を削り、スキーマ遵守のみを強調する
const strictPlanPromptTemplate = `Your previous response was not valid JSON matching the required schema (%s).

Respond again for the blog topic %q. Output MUST be a single JSON object and nothing else.
No markdown fences, no commentary. Every "heading" must be a non-empty string and
"sections" must contain at least one element.

Required JSON shape:
%s`

// planSchemaExample はLLMに提示するスキーマの具体例
const planSchemaExample = `{
  "title": "string",
  "intro": "string (optional)",
  "intro_length_guidance": "string (optional, e.g. '2-3 sentences')",
  "sections": [
    {
      "heading": "string",
      "description": "string (optional)",
      "subsections": [
        {"heading": "string", "description": "string (optional)"}
      ]
    }
  ]
}`

// buildPlanPrompt は初回のプラン生成プロンプトを組み立てる
func buildPlanPrompt(keyword string, contexts []retrieval.ScoredChunk) string {
	return fmt.Sprintf(planPromptTemplate, keyword, formatContext(contexts), planSchemaExample)
}

// buildStrictPlanPrompt はスキーマ違反後の厳格な再試行プロンプトを組み立てる
func buildStrictPlanPrompt(keyword string, schemaErr error) string {
	return fmt.Sprintf(strictPlanPromptTemplate, schemaErr, keyword, planSchemaExample)
}

// formatContext は検索チャンクをプロンプト用のテキストに整形する
func formatContext(contexts []retrieval.ScoredChunk) string {
	if len(contexts) == 0 {
		return "No additional context available."
	}

	var b strings.Builder
	for i, chunk := range contexts {
		title := chunk.SourceTitle
		if title == "" {
			title = "Source"
		}
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, title, chunk.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
