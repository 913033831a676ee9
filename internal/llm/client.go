package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"metalwatch/internal/answer"
)

const doneMarker = "[DONE]"

// ErrMalformed marks a response that could not be understood.
var ErrMalformed = errors.New("malformed completion response")

// Options configure the chat completions client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	opts   Options
	client *resty.Client
	logger zerolog.Logger
}

// New builds a completions client. Deadlines come from the caller's context.
func New(opts Options, logger zerolog.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	return &Client{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "llm").Str("model", opts.Model).Logger(),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

func (c *Client) payload(req answer.Request, stream bool) completionRequest {
	return completionRequest{
		Model: c.opts.Model,
		Messages: []message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage()},
		},
		Stream:      stream,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
}

// Generate requests a complete answer.
func (c *Client) Generate(ctx context.Context, req answer.Request) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(c.payload(req, false)).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("completion status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out completionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("completion error %s: %s", out.Error.Type, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformed)
	}

	text := out.Choices[0].Message.Content
	c.logger.Debug().Int("chars", len(text)).Msg("completion received")
	return text, nil
}

// Stream requests a streamed answer over server-sent events. The channel
// closes after the end marker; a missing marker is reported as an error
// chunk.
func (c *Client) Stream(ctx context.Context, req answer.Request) (<-chan answer.Chunk, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetBody(c.payload(req, true)).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("send completion request: %w", err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(body, 200))
		body.Close()
		return nil, fmt.Errorf("completion status %d: %s", resp.StatusCode(), strings.TrimSpace(string(detail)))
	}

	out := make(chan answer.Chunk)
	go func() {
		defer close(out)
		defer body.Close()
		c.readEvents(ctx, body, out)
	}()
	return out, nil
}

func (c *Client) readEvents(ctx context.Context, body io.Reader, out chan<- answer.Chunk) {
	emit := func(chunk answer.Chunk) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	chunks := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// blank separators, comments, event and id fields
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneMarker {
			c.logger.Debug().Int("chunks", chunks).Msg("completion stream finished")
			return
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			emit(answer.Chunk{Err: fmt.Errorf("%w: %v", ErrMalformed, err)})
			return
		}
		if ev.Error != nil {
			emit(answer.Chunk{Err: fmt.Errorf("completion error %s: %s", ev.Error.Type, ev.Error.Message)})
			return
		}
		if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
			continue
		}
		if !emit(answer.Chunk{Text: ev.Choices[0].Delta.Content}) {
			return
		}
		chunks++
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("%w: stream ended without %s", ErrMalformed, doneMarker)
	}
	emit(answer.Chunk{Err: fmt.Errorf("read completion stream: %w", err)})
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ answer.Generator = (*Client)(nil)
