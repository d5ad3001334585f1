package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/7310C7310C/sigao-ai/internal/config"
	"github.com/7310C7310C/sigao-ai/internal/models"
	"github.com/7310C7310C/sigao-ai/internal/modules/prompt"
)

const (
	bufferedTimeout  = 60 * time.Second
	streamingTimeout = 120 * time.Second

	// Upstream sampling parameters. High temperature keeps regenerated
	// answers from repeating themselves.
	upstreamTemperature = 1.2
	upstreamTopP        = 0.95

	maxEventLineSize = 1 << 20
)

// Client calls the Magisterium chat completions API.
type Client struct {
	cfg        config.MagisteriumConfig
	httpClient *http.Client
	streamHTTP *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.MagisteriumConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: bufferedTimeout},
		streamHTTP: &http.Client{Timeout: streamingTimeout},
		log:        log,
	}
}

// UpstreamResult is the outcome of one upstream call. Content holds the full
// accumulated text; for streaming calls the per-chunk text goes through the
// onChunk callback as well.
type UpstreamResult struct {
	Content          string
	Citations        []models.Citation
	RelatedQuestions []string
	RawRequest       json.RawMessage
	ResponseChunks   []json.RawMessage
	Streamed         bool
}

type chatRequest struct {
	Model                  string           `json:"model"`
	Messages               []prompt.Message `json:"messages"`
	Stream                 bool             `json:"stream"`
	ReturnRelatedQuestions bool             `json:"return_related_questions"`
	Temperature            float64          `json:"temperature"`
	TopP                   float64          `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations        []models.Citation `json:"citations"`
	RelatedQuestions []string          `json:"related_questions"`
	Error            json.RawMessage   `json:"error"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Citations        []models.Citation `json:"citations"`
	RelatedQuestions []string          `json:"related_questions"`
}

// Generate performs a buffered completion with the shorter timeout.
func (c *Client) Generate(ctx context.Context, messages []prompt.Message) (*UpstreamResult, error) {
	return c.complete(ctx, c.httpClient, messages, nil)
}

// GenerateStream performs a completion with the streaming timeout, invoking
// onChunk for every piece of content as it arrives.
func (c *Client) GenerateStream(ctx context.Context, messages []prompt.Message, onChunk func(string)) (*UpstreamResult, error) {
	return c.complete(ctx, c.streamHTTP, messages, onChunk)
}

func (c *Client) complete(ctx context.Context, httpClient *http.Client, messages []prompt.Message, onChunk func(string)) (*UpstreamResult, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Error("magisterium api key not configured")
		return nil, newError(KindConfiguration, "未配置 API 密钥，请联系管理员")
	}

	body, err := json.Marshal(chatRequest{
		Model:                  c.cfg.Model,
		Messages:               messages,
		Stream:                 c.cfg.Stream,
		ReturnRelatedQuestions: false,
		Temperature:            upstreamTemperature,
		TopP:                   upstreamTopP,
	})
	if err != nil {
		return nil, wrapError(KindUpstreamError, "网络错误："+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(KindUpstreamError, "网络错误："+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.cfg.APIKey))

	c.log.Info("calling magisterium api",
		zap.String("url", c.cfg.APIURL),
		zap.Int("messages", len(messages)),
		zap.Bool("stream", c.cfg.Stream),
	)

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	c.log.Info("magisterium connection established",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	result := &UpstreamResult{RawRequest: body}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		if err := c.readEventStream(resp.Body, result, onChunk); err != nil {
			return nil, err
		}
		result.Streamed = true
	} else {
		if err := c.readJSON(resp, result, onChunk); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// readEventStream parses SSE frames. Malformed frames are logged and skipped,
// and the "[DONE]" sentinel is ignored. Citations and related questions arrive
// on later frames and overwrite earlier values.
func (c *Client) readEventStream(body io.Reader, result *UpstreamResult, onChunk func(string)) error {
	var full strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[len("data: "):]
		if data == "[DONE]" {
			continue
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.log.Warn("unparseable stream frame", zap.String("line", line))
			continue
		}
		result.ResponseChunks = append(result.ResponseChunks, json.RawMessage(data))

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content := chunk.Choices[0].Delta.Content
			full.WriteString(content)
			if onChunk != nil {
				onChunk(content)
			}
		}
		if chunk.Citations != nil {
			result.Citations = chunk.Citations
		}
		if chunk.RelatedQuestions != nil {
			result.RelatedQuestions = chunk.RelatedQuestions
		}
	}
	if err := scanner.Err(); err != nil {
		return c.transportError(err)
	}

	result.Content = full.String()
	c.log.Info("streaming generation finished",
		zap.Int("citations", len(result.Citations)),
		zap.Int("chunks", len(result.ResponseChunks)),
	)
	return nil
}

// readJSON handles a buffered JSON response, reporting the whole content as a
// single chunk so callers behave the same on both paths.
func (c *Client) readJSON(resp *http.Response, result *UpstreamResult, onChunk func(string)) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return wrapError(KindUpstreamError, "解析 AI 响应失败："+err.Error(), err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error("magisterium api error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		if resp.StatusCode == http.StatusTooManyRequests {
			return newError(KindRateLimited, "请求过于频繁，请稍后再试")
		}
		return newError(KindUpstreamError, upstreamErrorMessage(parsed.Error, resp.StatusCode))
	}

	if len(parsed.Choices) == 0 {
		c.log.Error("unexpected response shape", zap.ByteString("response", raw))
		return newError(KindUpstreamError, "响应格式不正确")
	}

	content := parsed.Choices[0].Message.Content
	result.Content = content
	result.Citations = parsed.Citations
	result.RelatedQuestions = parsed.RelatedQuestions
	result.ResponseChunks = append(result.ResponseChunks, json.RawMessage(raw))
	if content != "" && onChunk != nil {
		onChunk(content)
	}

	c.log.Info("generation finished", zap.Int("content_length", len(content)))
	return nil
}

func (c *Client) transportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		c.log.Error("magisterium request timed out", zap.Error(err))
		return wrapError(KindUpstreamTimeout, "请求超时，请稍后重试", err)
	}
	c.log.Error("magisterium request failed", zap.Error(err))
	return wrapError(KindUpstreamError, "网络错误："+err.Error(), err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// upstreamErrorMessage extracts the error field from a failed response body,
// falling back to a generic message carrying the status code.
func upstreamErrorMessage(raw json.RawMessage, status int) string {
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			return msg
		}
		return string(raw)
	}
	return fmt.Sprintf("API 请求失败（%d）", status)
}
