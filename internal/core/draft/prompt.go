package draft

import (
	"fmt"
	"strings"

	"github.com/jinford/blog-rag/internal/core/plan"
	"github.com/jinford/blog-rag/internal/core/retrieval"
)

// introPromptTemplate は導入文生成プロンプト
const introPromptTemplate = `You are an expert blog writer. Write the introduction of a blog post.

BLOG TITLE: %s
INTRO BRIEF: %s

The post will cover these sections, in order:
%s

Use the following research context to ensure accuracy:

%s

REQUIREMENTS:
- Hook the reader and preview what the post covers
- Target length: %s
- Do NOT repeat the title or add any heading

Respond with the introduction text only, no preamble.`

// buildIntroPrompt は導入文生成プロンプトを組み立てる
// プランのIntroは導入が扱うべき内容の指示として埋め込む
func buildIntroPrompt(p *plan.BlogPlan, contexts []retrieval.ScoredChunk) string {
	guidance := p.IntroLengthGuidance
	if guidance == "" {
		guidance = "one short paragraph"
	}

	var headings []string
	for _, sec := range p.Sections {
		headings = append(headings, "- "+sec.Heading)
	}

	return fmt.Sprintf(introPromptTemplate,
		p.Title,
		p.Intro,
		strings.Join(headings, "\n"),
		formatContext(contexts),
		guidance,
	)
}

// sectionPromptTemplate はセクション本文生成プロンプト
const sectionPromptTemplate = `You are an expert blog writer. Write the body of ONE section of a blog post.

BLOG TITLE: %s
SECTION HEADING: %s%s%s

Use the following research context to ensure accuracy and depth:

%s

REQUIREMENTS:
- Write roughly %d words for this section
- Do NOT repeat the section heading itself; start directly with the body text
- Use markdown formatting (bullet points, bold) where it helps readability%s
- Write in an engaging, informative tone
- Stay factual: only claim what the research context supports

Respond with the section body only, no preamble.`

// buildSectionPrompt はセクション本文生成プロンプトを組み立てる
func buildSectionPrompt(title string, section plan.Section, contexts []retrieval.ScoredChunk, wordBudget int) string {
	var description string
	if section.Description != "" {
		description = fmt.Sprintf("\nSECTION DESCRIPTION: %s", section.Description)
	}

	var subsections string
	if len(section.Subsections) > 0 {
		var lines []string
		for _, sub := range section.Subsections {
			line := fmt.Sprintf("  - %s", sub.Heading)
			if sub.Description != "" {
				line += fmt.Sprintf(" (%s)", sub.Description)
			}
			lines = append(lines, line)
		}
		subsections = fmt.Sprintf("\nSUBSECTIONS TO COVER (use ### headings, in this order):\n%s", strings.Join(lines, "\n"))
	}

	var subsectionRule string
	if len(section.Subsections) > 0 {
		subsectionRule = "\n- Cover every listed subsection under its own ### heading, in the given order"
	}

	return fmt.Sprintf(sectionPromptTemplate,
		title,
		section.Heading,
		description,
		subsections,
		formatContext(contexts),
		wordBudget,
		subsectionRule,
	)
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
