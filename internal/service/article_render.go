package service

import (
	"bytes"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps(), goldmarkhtml.WithXHTML()),
	)
	sanitizer = newContentPolicy()
)

// newContentPolicy 在 UGC 策略之上放行锚点 id 与 callout 容器。
func newContentPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowElements("aside")
	policy.AllowAttrs("class").OnElements("aside")
	return policy
}

// renderContentHTML 把内容块渲染为一份净化过的 HTML 快照，随文章落库。
// 段落、列表项与 callout 文本按 Markdown 处理，heading 的 id 保留为锚点。
func renderContentHTML(blocks []ContentBlock) string {
	var builder strings.Builder
	for _, block := range blocks {
		switch block.Type {
		case BlockHeading:
			level := block.Level
			if level < 1 || level > 6 {
				level = 2
			}
			anchor := ""
			if block.ID != "" {
				anchor = fmt.Sprintf(" id=%q", block.ID)
			}
			fmt.Fprintf(&builder, "<h%d%s>%s</h%d>\n", level, anchor, html.EscapeString(block.Text), level)
		case BlockParagraph:
			builder.WriteString(renderMarkdown(block.Text))
		case BlockList:
			builder.WriteString("<ul>\n")
			for _, item := range block.Items {
				fmt.Fprintf(&builder, "<li>%s</li>\n", html.EscapeString(item))
			}
			builder.WriteString("</ul>\n")
		case BlockCallout:
			variant := block.Variant
			if variant == "" {
				variant = CalloutNote
			}
			fmt.Fprintf(&builder, "<aside class=\"callout callout-%s\">\n%s</aside>\n",
				variant, renderMarkdown(block.Text))
		}
	}
	return sanitizer.Sanitize(builder.String())
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &buf); err != nil {
		log.Printf("渲染 Markdown 失败，回退为纯文本: %v", err)
		return "<p>" + html.EscapeString(text) + "</p>\n"
	}
	return buf.String()
}
