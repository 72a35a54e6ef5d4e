package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ChatClient sends one chat completion and returns the assistant text.
type ChatClient interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// ChatClientFunc adapts a function to ChatClient.
type ChatClientFunc func(ctx context.Context, msgs []Message) (string, error)

func (f ChatClientFunc) Complete(ctx context.Context, msgs []Message) (string, error) {
	return f(ctx, msgs)
}

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAIClient speaks the OpenAI chat-completions protocol. Any compatible
// endpoint works.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http *http.Client
}

// NewOpenAIClient builds a client. httpClient may be nil.
func NewOpenAIClient(cfg OpenAIConfig, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{cfg: cfg, http: httpClient}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "oracle: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeOracleUnavailable, "oracle: create request")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", errors.New(errors.ErrCodeOracleUnavailable, "oracle: unexpected status").
			WithDetail(strconv.Itoa(resp.StatusCode))
	}

	var out openAIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", transportError(ctx, err)
		}
		return "", errors.Wrap(err, errors.ErrCodeOracleMalformed, "oracle: decode response")
	}
	if len(out.Choices) == 0 {
		return "", errors.New(errors.ErrCodeOracleMalformed, "oracle: empty choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

func transportError(ctx context.Context, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeOracleTimeout, "oracle: request timed out")
	}
	return errors.Wrap(err, errors.ErrCodeOracleUnavailable, "oracle: request failed")
}

// DefaultHTTPTimeout bounds the transport when no per-call deadline is set.
const DefaultHTTPTimeout = 30 * time.Second
