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

func newTestTopicSelector(t *testing.T, handler func(*http.Request) (*http.Response, error)) *TopicSelector {
	t.Helper()
	client := NewOpenRouterClient("https://openrouter.test/v1", "or-test")
	client.SetHTTPClient(fakeHTTPClient{handler: handler})
	return NewTopicSelector(client, "test-model")
}

func TestSelectTopicParsesDecision(t *testing.T) {
	var captured chatCompletionRequest
	selector := newTestTopicSelector(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		return textResponse(t, `{"keyword":"bpc-157","title":"BPC-157 与肠道修复","reasoning":"目录里有但尚未成文"}`), nil
	})

	peptides := []db.Peptide{{Slug: "bpc-157", Name: "BPC-157", Summary: "修复类肽"}}
	decision, err := selector.SelectTopic(context.Background(), []string{"已有文章一"}, peptides, "多写机制")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.Keyword != "bpc-157" || decision.Title != "BPC-157 与肠道修复" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %#v", captured.ResponseFormat)
	}

	prompt := captured.Messages[1].Content
	for _, want := range []string{"已有文章一", "BPC-157", "多写机制"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSelectTopicCapsExistingTitles(t *testing.T) {
	var captured chatCompletionRequest
	selector := newTestTopicSelector(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		return textResponse(t, `{"keyword":"k","title":"t","reasoning":"r"}`), nil
	})

	titles := make([]string, 60)
	for i := range titles {
		titles[i] = "title"
	}
	if _, err := selector.SelectTopic(context.Background(), titles, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Count(captured.Messages[1].Content, "- title"); got != 50 {
		t.Fatalf("expected 50 titles in prompt, got %d", got)
	}
}

func TestSelectTopicStripsCodeFence(t *testing.T) {
	selector := newTestTopicSelector(t, func(*http.Request) (*http.Response, error) {
		return textResponse(t, "```json\n{\"keyword\":\"k\",\"title\":\"t\",\"reasoning\":\"r\"}\n```"), nil
	})

	decision, err := selector.SelectTopic(context.Background(), nil, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Title != "t" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestSelectTopicUnparseableIsUpstreamFailure(t *testing.T) {
	selector := newTestTopicSelector(t, func(*http.Request) (*http.Response, error) {
		return textResponse(t, "这不是 JSON"), nil
	})

	_, err := selector.SelectTopic(context.Background(), nil, nil, "")
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestSelectTopicMissingTitleIsUpstreamFailure(t *testing.T) {
	selector := newTestTopicSelector(t, func(*http.Request) (*http.Response, error) {
		return textResponse(t, `{"keyword":"k","reasoning":"r"}`), nil
	})

	_, err := selector.SelectTopic(context.Background(), nil, nil, "")
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}

func TestSelectTopicUpstreamErrorIsFatal(t *testing.T) {
	selector := newTestTopicSelector(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "boom"},
		}), nil
	})

	_, err := selector.SelectTopic(context.Background(), nil, nil, "")
	if !errors.Is(err, ErrUpstreamGeneration) {
		t.Fatalf("expected ErrUpstreamGeneration, got %v", err)
	}
}
