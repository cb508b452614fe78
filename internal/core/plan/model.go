package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTitle はタイトルが空の場合のエラー
	ErrEmptyTitle = errors.New("plan title must not be empty")

	// ErrNoSections はセクションが1つもない場合のエラー
	ErrNoSections = errors.New("plan must contain at least one section")
)

// Subsection はセクション配下の小見出しを表す
type Subsection struct {
	Heading     string `json:"heading"`
	Description string `json:"description,omitempty"`
}

// Section はブログ記事の1セクションの構成を表す
// Subsectionsの順序は生成結果までそのまま保持される
type Section struct {
	Heading     string       `json:"heading"`
	Description string       `json:"description,omitempty"`
	Subsections []Subsection `json:"subsections,omitempty"`
}

// BlogPlan はブログ記事の構成計画を表す
// Sectionsの順序は意味を持ち、ドラフト生成までそのまま保持される
// Introは導入文そのものではなく、導入が扱うべき内容の指示
// IntroLengthGuidanceは導入文の目安の長さ（例: "2-3 sentences"）
type BlogPlan struct {
	Title               string    `json:"title"`
	Intro               string    `json:"intro,omitempty"`
	IntroLengthGuidance string    `json:"intro_length_guidance,omitempty"`
	Sections            []Section `json:"sections"`
}

// Validate はスキーマ制約（タイトル・見出しが非空、セクション1つ以上）を検証する
func (p *BlogPlan) Validate() error {
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if len(p.Sections) == 0 {
		return ErrNoSections
	}
	for i, sec := range p.Sections {
		if sec.Heading == "" {
			return fmt.Errorf("section %d: heading must not be empty", i)
		}
		for j, sub := range sec.Subsections {
			if sub.Heading == "" {
				return fmt.Errorf("section %d, subsection %d: heading must not be empty", i, j)
			}
		}
	}
	return nil
}

// SectionCount はセクション数を返す
func (p *BlogPlan) SectionCount() int {
	return len(p.Sections)
}

// Headings は全セクションの見出しを計画順に返す
func (p *BlogPlan) Headings() []string {
	headings := make([]string, 0, len(p.Sections))
	for _, sec := range p.Sections {
		headings = append(headings, sec.Heading)
	}
	return headings
}
