package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrAIAPIKeyMissing 表示未配置 OpenRouter API Key。
	ErrAIAPIKeyMissing = errors.New("api key is required")
	// ErrAIRateLimited 表示上游返回 429。
	ErrAIRateLimited = errors.New("ai provider rate limited")
	// ErrAIQuotaExhausted 表示上游返回 402，额度用尽。
	ErrAIQuotaExhausted = errors.New("ai provider quota exhausted")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	Images    []chatImage    `json:"images,omitempty"`
}

type chatToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatImage struct {
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Tools          []chatTool          `json:"tools,omitempty"`
	ToolChoice     any                 `json:"tool_choice,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
	Modalities     []string            `json:"modalities,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// aiStatusError 保留上游 HTTP 状态码，供图片管线判定是否可重试。
type aiStatusError struct {
	status  int
	message string
}

func (e *aiStatusError) Error() string {
	return fmt.Sprintf("ai provider returned %d: %s", e.status, e.message)
}

// AIClient 封装对 OpenRouter 兼容接口的 chat/completions 调用，
// 文本与图像模型共用同一入口。
type AIClient struct {
	http    httpDoer
	baseURL string
	apiKey  string
}

// NewOpenRouterClient 构造 AIClient。
func NewOpenRouterClient(baseURL, apiKey string) *AIClient {
	return &AIClient{
		http:    &http.Client{Timeout: 180 * time.Second},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

func (c *AIClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 20 * time.Second}
		return
	}
	c.http = client
}

func (c *AIClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// createChatCompletion 发送一次补全请求并返回解析后的响应。
// 429/402 被映射为可识别的哨兵错误，其余非 2xx 包装为 aiStatusError。
func (c *AIClient) createChatCompletion(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, error) {
	if c.apiKey == "" {
		return chatCompletionResponse{}, ErrAIAPIKeyMissing
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("创建 OpenRouter 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "peptidepress-generator/1.0")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("请求 OpenRouter 接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return chatCompletionResponse{}, fmt.Errorf("读取 OpenRouter 响应失败: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil && resp.StatusCode < http.StatusBadRequest {
		return chatCompletionResponse{}, fmt.Errorf("解析 OpenRouter 响应失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return chatCompletionResponse{}, fmt.Errorf("%w: %s", ErrAIRateLimited, errMsg)
		case http.StatusPaymentRequired:
			return chatCompletionResponse{}, fmt.Errorf("%w: %s", ErrAIQuotaExhausted, errMsg)
		}
		return chatCompletionResponse{}, &aiStatusError{status: resp.StatusCode, message: errMsg}
	}

	if len(completion.Choices) == 0 {
		return chatCompletionResponse{}, errors.New("OpenRouter 接口未返回结果")
	}

	return completion, nil
}
