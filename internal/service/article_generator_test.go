package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/peptidepress/internal/db"
)

func toolResponse(t *testing.T, arguments string) *http.Response {
	t.Helper()
	return jsonResponse(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"function": map[string]any{
						"name":      articleToolName,
						"arguments": arguments,
					},
				}},
			},
		}},
	})
}

func newTestArticleGenerator(t *testing.T, handler func(*http.Request) (*http.Response, error)) *ArticleGenerator {
	t.Helper()
	client := NewOpenRouterClient("https://openrouter.test/v1", "or-test")
	client.SetHTTPClient(fakeHTTPClient{handler: handler})
	return NewArticleGenerator(client, "test-model")
}

func TestGenerateParsesToolArguments(t *testing.T) {
	arguments := `{
		"title": "BPC-157 与肠道修复",
		"summary": "一篇关于 BPC-157 的科普",
		"category": "repair",
		"content": [
			{"type": "heading", "id": "intro", "level": 2, "text": "Introduction"},
			{"type": "paragraph", "text": "正文"},
			{"type": "callout", "variant": "warning", "text": "注意事项"}
		],
		"matchedPeptideSlugs": ["bpc-157"]
	}`

	var captured chatCompletionRequest
	generator := newTestArticleGenerator(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		return toolResponse(t, arguments), nil
	})

	categories := []db.Category{{Slug: "repair", Label: "修复与恢复"}}
	draft, err := generator.Generate(context.Background(),
		TopicDecision{Keyword: "bpc-157", Title: "BPC-157 与肠道修复"},
		db.LengthShort, "", categories, []db.Peptide{{Slug: "bpc-157", Name: "BPC-157"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != articleToolName {
		t.Fatalf("expected forced %s tool, got %#v", articleToolName, captured.Tools)
	}
	if captured.ToolChoice == nil {
		t.Fatal("expected tool_choice to be set")
	}
	if !strings.Contains(captured.Messages[1].Content, "800–1200") {
		t.Fatalf("prompt missing short word range:\n%s", captured.Messages[1].Content)
	}

	if draft.Slug != "bpc-157" {
		t.Fatalf("expected slug derived from title, got %q", draft.Slug)
	}
	if draft.IsNewCategory {
		t.Fatal("repair is a known category")
	}
	if draft.CategoryLabel != "修复与恢复" {
		t.Fatalf("expected label from catalog, got %q", draft.CategoryLabel)
	}
	if draft.ReadTime < 1 {
		t.Fatalf("expected computed read time, got %d", draft.ReadTime)
	}
}

func TestGenerateMarksUnknownCategoryAsNew(t *testing.T) {
	arguments := `{
		"title": "T", "summary": "S", "category": "brand-new",
		"content": [{"type": "paragraph", "text": "p"}]
	}`
	generator := newTestArticleGenerator(t, func(*http.Request) (*http.Response, error) {
		return toolResponse(t, arguments), nil
	})

	draft, err := generator.Generate(context.Background(), TopicDecision{}, db.LengthStandard, "",
		[]db.Category{{Slug: "repair", Label: "修复"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !draft.IsNewCategory {
		t.Fatal("expected isNewCategory for unlisted category")
	}
}

func TestGenerateMissingToolCallIsUpstreamFailure(t *testing.T) {
	generator := newTestArticleGenerator(t, func(*http.Request) (*http.Response, error) {
		return textResponse(t, "我直接写了一篇文章"), nil
	})

	_, err := generator.Generate(context.Background(), TopicDecision{}, db.LengthStandard, "", nil, nil)
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestGenerateMalformedArgumentsIsUpstreamFailure(t *testing.T) {
	generator := newTestArticleGenerator(t, func(*http.Request) (*http.Response, error) {
		return toolResponse(t, `{"title": "T"`), nil
	})

	_, err := generator.Generate(context.Background(), TopicDecision{}, db.LengthStandard, "", nil, nil)
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestGenerateRejectsUnknownBlockType(t *testing.T) {
	arguments := `{
		"title": "T", "summary": "S", "category": "c",
		"content": [{"type": "table", "text": "x"}]
	}`
	generator := newTestArticleGenerator(t, func(*http.Request) (*http.Response, error) {
		return toolResponse(t, arguments), nil
	})

	_, err := generator.Generate(context.Background(), TopicDecision{}, db.LengthStandard, "", nil, nil)
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestGenerateRejectsEmptyContent(t *testing.T) {
	arguments := `{"title": "T", "summary": "S", "category": "c", "content": []}`
	generator := newTestArticleGenerator(t, func(*http.Request) (*http.Response, error) {
		return toolResponse(t, arguments), nil
	})

	_, err := generator.Generate(context.Background(), TopicDecision{}, db.LengthStandard, "", nil, nil)
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestEstimateReadTime(t *testing.T) {
	long := strings.Repeat("word ", 450)
	blocks := []ContentBlock{
		{Type: BlockParagraph, Text: long},
		{Type: BlockList, Items: []string{"one two three"}},
	}
	if got := estimateReadTime(blocks); got != 2 {
		t.Fatalf("expected 2 minutes, got %d", got)
	}
	if got := estimateReadTime(nil); got != 1 {
		t.Fatalf("expected minimum of 1 minute, got %d", got)
	}
}
