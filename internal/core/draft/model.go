package draft

import (
	"fmt"
	"strings"
)

// GeneratedBlogSection は生成済みの1セクションを表す
// Indexは元プランのセクション位置に一致する
type GeneratedBlogSection struct {
	Index   int    `json:"index"`
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// GeneratedBlog は生成済みブログ記事全体を表す
// Sectionsの順序は元プランのセクション順に一致する
type GeneratedBlog struct {
	Title    string                 `json:"title"`
	Intro    string                 `json:"intro,omitempty"`
	Sections []GeneratedBlogSection `json:"sections"`
	// Citations は全セクションの検索で参照したソースURL
	// 重複なし・初出順
	Citations []string `json:"citations"`
	// Markdown は最終的な記事本文（セクション連結＋引用リスト）
	Markdown string `json:"markdown"`
}

// assembleMarkdown はセクションをインデックス順に連結し、引用リストを末尾に付ける
func assembleMarkdown(title, intro string, sections []GeneratedBlogSection, citations []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	if intro != "" {
		fmt.Fprintf(&b, "%s\n\n", intro)
	}

	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Heading, strings.TrimSpace(sec.Content))
	}

	if len(citations) > 0 {
		b.WriteString("## Sources\n\n")
		for _, url := range citations {
			fmt.Fprintf(&b, "- %s\n", url)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// citationSet はソースURLを初出順で重複なく集める
type citationSet struct {
	seen map[string]struct{}
	urls []string
}

func newCitationSet() *citationSet {
	return &citationSet{seen: make(map[string]struct{})}
}

func (c *citationSet) add(url string) {
	if url == "" {
		return
	}
	if _, ok := c.seen[url]; ok {
		return
	}
	c.seen[url] = struct{}{}
	c.urls = append(c.urls, url)
}

func (c *citationSet) list() []string {
	return c.urls
}
