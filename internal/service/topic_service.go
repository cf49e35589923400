package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/peptidepress/internal/db"
)

const (
	maxExistingTitlesInPrompt = 50
	topicSelectorTemperature  = 0.8
)

const topicSystemPrompt = "你是一家肽科普站点的内容策划。根据已有文章标题与肽目录，" +
	"选出一个尚未覆盖、读者关心的新选题。只返回一个 JSON 对象：" +
	`{"keyword": "...", "title": "...", "reasoning": "..."}，不要输出其他内容。`

// TopicSelector 通过一次受 JSON 约束的模型调用挑选新选题。
//
// 查重只停留在提示词层面：模型被告知避开近 50 篇标题，但代码不做
// 机械校验，重复标题是已知的软约束。
type TopicSelector struct {
	client *AIClient
	model  string
}

// NewTopicSelector 构造 TopicSelector。
func NewTopicSelector(client *AIClient, model string) *TopicSelector {
	return &TopicSelector{client: client, model: model}
}

// SelectTopic 在一次调用内返回选题决定。任何调用失败或响应不可解析
// 都视为本次运行的致命错误，本层不做重试。
func (s *TopicSelector) SelectTopic(ctx context.Context, existingTitles []string, peptides []db.Peptide, steering string) (TopicDecision, error) {
	prompt := buildTopicPrompt(existingTitles, peptides, steering)
	logModelExchange("TOPIC", "prompt", prompt)

	resp, err := s.client.createChatCompletion(ctx, chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: topicSystemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
		Temperature:    topicSelectorTemperature,
	})
	if err != nil {
		return TopicDecision{}, fmt.Errorf("%w: %w", ErrUpstreamGeneration, err)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	logModelExchange("TOPIC", "response", content)

	var decision TopicDecision
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &decision); err != nil {
		return TopicDecision{}, fmt.Errorf("%w: 解析选题响应失败: %w", ErrUpstreamGeneration, err)
	}

	if err := validation.ValidateStruct(&decision,
		validation.Field(&decision.Keyword, validation.Required),
		validation.Field(&decision.Title, validation.Required),
	); err != nil {
		return TopicDecision{}, fmt.Errorf("%w: 选题响应缺少必需字段: %w", ErrUpstreamGeneration, err)
	}

	return decision, nil
}

func buildTopicPrompt(existingTitles []string, peptides []db.Peptide, steering string) string {
	if len(existingTitles) > maxExistingTitlesInPrompt {
		existingTitles = existingTitles[:maxExistingTitlesInPrompt]
	}

	var builder strings.Builder
	builder.WriteString("已有文章标题（请勿重复，包括大小写不同的变体）：\n")
	if len(existingTitles) == 0 {
		builder.WriteString("（暂无）\n")
	}
	for _, title := range existingTitles {
		builder.WriteString("- ")
		builder.WriteString(title)
		builder.WriteString("\n")
	}

	builder.WriteString("\n肽目录：\n")
	for _, p := range peptides {
		builder.WriteString("- ")
		builder.WriteString(p.Name)
		if strings.TrimSpace(p.Summary) != "" {
			builder.WriteString("：")
			builder.WriteString(p.Summary)
		}
		builder.WriteString("\n")
	}

	if strings.TrimSpace(steering) != "" {
		builder.WriteString("\n补充要求：")
		builder.WriteString(strings.TrimSpace(steering))
		builder.WriteString("\n")
	}

	return builder.String()
}

// stripCodeFence 去掉模型偶尔包在 JSON 外层的 Markdown 代码围栏。
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
