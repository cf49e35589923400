package service

import (
	"regexp"
	"strings"
)

// 内容块类型。
const (
	BlockHeading   = "heading"
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockCallout   = "callout"
)

// Callout 样式。
const (
	CalloutInfo    = "info"
	CalloutWarning = "warning"
	CalloutNote    = "note"
)

// ContentBlock 是文章内容的最小单元，type 决定哪些字段有效：
// heading 使用 id/level/text，paragraph 与 callout 使用 text，
// list 使用 items，callout 另带 variant。
type ContentBlock struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Level   int      `json:"level,omitempty"`
	Text    string   `json:"text,omitempty"`
	Items   []string `json:"items,omitempty"`
	Variant string   `json:"variant,omitempty"`
}

// TocEntry 是目录中的一项，指向正文中同 id 的 heading 块。
type TocEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level int    `json:"level"`
}

// TopicDecision 是单次运行中选定的选题，不做持久化。
type TopicDecision struct {
	Keyword   string `json:"keyword"`
	Title     string `json:"title"`
	Reasoning string `json:"reasoning"`
}

// ArticleDraft 是生成后、落库前的完整文章结构。
type ArticleDraft struct {
	Title               string         `json:"title"`
	Summary             string         `json:"summary"`
	Slug                string         `json:"slug"`
	Category            string         `json:"category"`
	CategoryLabel       string         `json:"categoryLabel"`
	IsNewCategory       bool           `json:"isNewCategory"`
	TableOfContents     []TocEntry     `json:"tableOfContents"`
	Content             []ContentBlock `json:"content"`
	ReadTime            int            `json:"readTime"`
	RelatedPeptides     []string       `json:"relatedPeptides"`
	MatchedPeptideSlugs []string       `json:"matchedPeptideSlugs"`
}

// ContentImage 是正文某个小节的配图。
type ContentImage struct {
	SectionID string `json:"sectionId"`
	ImageURL  string `json:"imageUrl"`
	AltText   string `json:"altText"`
}

// GeneratedImages 汇总一次运行产出的全部图片。
// FeaturedImageURL 为空表示头图生成失败，文章照常发布。
type GeneratedImages struct {
	FeaturedImageURL string
	ContentImages    []ContentImage
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 将标题转为 URL 友好的 slug。
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
