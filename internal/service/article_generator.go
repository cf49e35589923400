package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/peptidepress/internal/db"
)

const articleToolName = "write_article"

// writeArticleSchema 是 write_article 工具的参数 Schema。
// 模型被强制以工具调用形式返回，省掉二次抽取步骤。
const writeArticleSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "summary": {"type": "string"},
    "slug": {"type": "string"},
    "category": {"type": "string", "description": "分类 slug，优先复用已有分类"},
    "categoryLabel": {"type": "string"},
    "isNewCategory": {"type": "boolean"},
    "tableOfContents": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "title": {"type": "string"},
          "level": {"type": "integer"}
        },
        "required": ["id", "title"]
      }
    },
    "content": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string", "enum": ["heading", "paragraph", "list", "callout"]},
          "id": {"type": "string"},
          "level": {"type": "integer"},
          "text": {"type": "string"},
          "items": {"type": "array", "items": {"type": "string"}},
          "variant": {"type": "string", "enum": ["info", "warning", "note"]}
        },
        "required": ["type"]
      }
    },
    "readTime": {"type": "integer"},
    "relatedPeptides": {"type": "array", "items": {"type": "string"}},
    "matchedPeptideSlugs": {
      "type": "array",
      "items": {"type": "string"},
      "description": "只返回确有上下文关联的目录 slug"
    }
  },
  "required": ["title", "summary", "category", "content"]
}`

const articleSystemPrompt = "你是一家肽科普站点的资深撰稿人。围绕给定选题撰写一篇结构化文章，" +
	"并通过 write_article 工具返回结果。正文由 heading/paragraph/list/callout 内容块组成，" +
	"每个 heading 需要稳定的小节 id。引用肽目录时只在 matchedPeptideSlugs 中返回你确信相关的 slug。"

const wordsPerMinute = 200

// ArticleGenerator 通过一次受工具 Schema 约束的模型调用生成文章草稿。
type ArticleGenerator struct {
	client *AIClient
	model  string
}

// NewArticleGenerator 构造 ArticleGenerator。
func NewArticleGenerator(client *AIClient, model string) *ArticleGenerator {
	return &ArticleGenerator{client: client, model: model}
}

// Generate 生成一篇文章草稿。模型输出经过显式的形状校验，
// 不合法的响应会被归类为 ErrUpstreamGeneration 而不是裸解析错误。
func (g *ArticleGenerator) Generate(ctx context.Context, topic TopicDecision, targetLength string, steering string, categories []db.Category, peptides []db.Peptide) (*ArticleDraft, error) {
	prompt := buildArticlePrompt(topic, targetLength, steering, categories, peptides)
	logModelExchange("ARTICLE", "prompt", prompt)

	resp, err := g.client.createChatCompletion(ctx, chatCompletionRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: articleSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: chatToolFunction{
				Name:        articleToolName,
				Description: "提交结构化的文章草稿",
				Parameters:  json.RawMessage(writeArticleSchema),
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": articleToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamGeneration, err)
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: 模型未返回工具调用", ErrUpstreamGeneration)
	}

	arguments := message.ToolCalls[0].Function.Arguments
	logModelExchange("ARTICLE", "response", arguments)

	var draft ArticleDraft
	if err := json.Unmarshal([]byte(arguments), &draft); err != nil {
		return nil, fmt.Errorf("%w: 解析工具参数失败: %w", ErrUpstreamGeneration, err)
	}

	if err := validateDraft(&draft); err != nil {
		return nil, fmt.Errorf("%w: 文章草稿不完整: %w", ErrUpstreamGeneration, err)
	}

	normalizeDraft(&draft, categories)
	return &draft, nil
}

// validateDraft 对模型输出做运行时形状校验。
func validateDraft(draft *ArticleDraft) error {
	err := validation.ValidateStruct(draft,
		validation.Field(&draft.Title, validation.Required),
		validation.Field(&draft.Summary, validation.Required),
		validation.Field(&draft.Category, validation.Required),
		validation.Field(&draft.Content, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return err
	}

	for i, block := range draft.Content {
		switch block.Type {
		case BlockHeading, BlockParagraph, BlockList, BlockCallout:
		default:
			return fmt.Errorf("content[%d]: 未知的内容块类型 %q", i, block.Type)
		}
		if block.Type == BlockCallout && block.Variant != "" {
			switch block.Variant {
			case CalloutInfo, CalloutWarning, CalloutNote:
			default:
				return fmt.Errorf("content[%d]: 未知的 callout 样式 %q", i, block.Variant)
			}
		}
	}
	return nil
}

// normalizeDraft 补齐模型未必会给全的派生字段。
func normalizeDraft(draft *ArticleDraft, categories []db.Category) {
	if strings.TrimSpace(draft.Slug) == "" {
		draft.Slug = Slugify(draft.Title)
	}
	if strings.TrimSpace(draft.CategoryLabel) == "" {
		draft.CategoryLabel = draft.Category
	}
	if draft.ReadTime <= 0 {
		draft.ReadTime = estimateReadTime(draft.Content)
	}

	known := false
	for _, cat := range categories {
		if strings.EqualFold(cat.Slug, draft.Category) {
			known = true
			draft.Category = cat.Slug
			if strings.TrimSpace(draft.CategoryLabel) == "" || draft.CategoryLabel == draft.Category {
				draft.CategoryLabel = cat.Label
			}
			break
		}
	}
	draft.IsNewCategory = !known
}

// estimateReadTime 按每分钟 200 词估算阅读时长，至少 1 分钟。
func estimateReadTime(blocks []ContentBlock) int {
	words := 0
	for _, block := range blocks {
		words += len(strings.Fields(block.Text))
		for _, item := range block.Items {
			words += len(strings.Fields(item))
		}
	}
	minutes := words / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func buildArticlePrompt(topic TopicDecision, targetLength string, steering string, categories []db.Category, peptides []db.Peptide) string {
	minWords, maxWords := WordRange(targetLength)

	var builder strings.Builder
	builder.WriteString("选题关键词：")
	builder.WriteString(topic.Keyword)
	builder.WriteString("\n文章标题：")
	builder.WriteString(topic.Title)
	if strings.TrimSpace(topic.Reasoning) != "" {
		builder.WriteString("\n选题理由：")
		builder.WriteString(topic.Reasoning)
	}
	fmt.Fprintf(&builder, "\n目标篇幅：%d–%d 词\n", minWords, maxWords)

	builder.WriteString("\n已有分类（优先复用，确有必要时可新建并置 isNewCategory=true）：\n")
	for _, cat := range categories {
		fmt.Fprintf(&builder, "- %s（%s）\n", cat.Slug, cat.Label)
	}

	builder.WriteString("\n肽目录（name → slug）：\n")
	for _, p := range peptides {
		fmt.Fprintf(&builder, "- %s → %s\n", p.Name, p.Slug)
	}

	if strings.TrimSpace(steering) != "" {
		builder.WriteString("\n补充要求：")
		builder.WriteString(strings.TrimSpace(steering))
		builder.WriteString("\n")
	}

	return builder.String()
}
