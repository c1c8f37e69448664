package provider

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

	"trendpilot/internal/logger"
	"trendpilot/internal/pkg/circuit"

	"github.com/cenkalti/backoff/v4"
)

// ErrCircuitOpen 表示连续失败后暂停调用推理服务。
var ErrCircuitOpen = errors.New("reasoning service circuit open")

// OpenAIChatClient：兼容 OpenAI / DeepSeek 的聊天补全接口（/chat/completions）。
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
	// MaxRetries 为 429/5xx 的重试次数。
	MaxRetries int
	// InitialBackoff 为首次重试前的等待。
	InitialBackoff time.Duration

	HTTPClient *http.Client
	Breaker    *circuit.CircuitBreaker
}

var _ ReasoningService = (*OpenAIChatClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StatusError 是非 2xx 响应。
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.StatusCode, e.Message)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	// 避免配置里已带 /chat/completions 时路径重复
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return c.HTTPClient
}

// Complete 发送一次聊天补全请求，429/5xx 按指数退避重试。
func (c *OpenAIChatClient) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c.Breaker != nil && !c.Breaker.Allow() {
		return "", ErrCircuitOpen
	}
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})
	body, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages, Temperature: temperature})
	if err != nil {
		return "", err
	}
	url := c.endpoint()
	logger.Debugf("[AI] 请求: POST %s model=%s bytes=%d auth=%s", url, c.Model, len(body), maskSecret(c.APIKey))
	logger.LogLLMRequest(c.Model, system, user)

	var out string
	operation := func() error {
		content, err := c.do(ctx, url, body)
		if err != nil {
			var serr *StatusError
			if errors.As(err, &serr) && !retryableStatus(serr.StatusCode) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		out = content
		return nil
	}
	err = backoff.RetryNotify(operation, c.backoffPolicy(ctx), func(err error, wait time.Duration) {
		logger.Warnf("[AI] 请求失败，%s 后重试: %v", wait.Round(time.Millisecond), err)
	})
	if err != nil {
		if c.Breaker != nil {
			c.Breaker.RecordFailure()
		}
		return "", err
	}
	if c.Breaker != nil {
		c.Breaker.RecordSuccess()
	}
	logger.LogLLMResponse(c.Model, out)
	return out, nil
}

func (c *OpenAIChatClient) backoffPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.InitialBackoff
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = 800 * time.Millisecond
	}
	exp.MaxInterval = 8 * time.Second
	exp.MaxElapsedTime = 0
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func (c *OpenAIChatClient) do(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		var eresp errorResponse
		_ = json.Unmarshal(payload, &eresp)
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	var r chatResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}

// maskSecret 仅展示后 4 位。
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
