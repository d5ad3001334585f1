package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/7310C7310C/sigao-ai/internal/config"
	"github.com/7310C7310C/sigao-ai/internal/modules/prompt"
)

func newTestClient(url string) *Client {
	return NewClient(config.MagisteriumConfig{
		APIURL: url,
		APIKey: "test-key",
		Model:  "magisterium-1",
		Stream: true,
	}, zap.NewNop())
}

func testMessages() []prompt.Message {
	return []prompt.Message{
		{Role: "system", Content: "你是助手"},
		{Role: "user", Content: "总结这一章"},
	}
}

func sseHandler(frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
	}
}

func TestGenerateStreamSSE(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`{"choices":[{"delta":{"content":"太初"}}]}`,
		`{"choices":[{"delta":{"content":"有道。"}}]}`,
		`{"citations":[{"document_title":"若望福音"}],"related_questions":["什么是道？"]}`,
		`[DONE]`,
	}))
	defer srv.Close()

	var chunks []string
	result, err := newTestClient(srv.URL).GenerateStream(context.Background(), testMessages(), func(c string) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"太初", "有道。"}, chunks)
	assert.Equal(t, "太初有道。", result.Content)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "若望福音", result.Citations[0].DocumentTitle)
	assert.Equal(t, []string{"什么是道？"}, result.RelatedQuestions)
	assert.True(t, result.Streamed)
	// [DONE] is a sentinel, not a chunk.
	assert.Len(t, result.ResponseChunks, 3)
}

func TestGenerateStreamSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`{"choices":[{"delta":{"content":"一"}}]}`,
		`{not json`,
		`{"choices":[{"delta":{"content":"二"}}]}`,
	}))
	defer srv.Close()

	var chunks []string
	result, err := newTestClient(srv.URL).GenerateStream(context.Background(), testMessages(), func(c string) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "二"}, chunks)
	assert.Equal(t, "一二", result.Content)
	assert.Len(t, result.ResponseChunks, 2)
}

func TestGenerateBufferedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "magisterium-1", req.Model)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.False(t, req.ReturnRelatedQuestions)
		assert.InDelta(t, 1.2, req.Temperature, 0.001)
		assert.InDelta(t, 0.95, req.TopP, 0.001)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"完整内容"}}],"citations":[{"document_title":"文献"}]}`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Generate(context.Background(), testMessages())
	require.NoError(t, err)

	assert.Equal(t, "完整内容", result.Content)
	require.Len(t, result.Citations, 1)
	assert.False(t, result.Streamed)
	assert.Len(t, result.ResponseChunks, 1)
}

func TestGenerateStreamBufferedResponseSingleChunk(t *testing.T) {
	// A JSON response on the streaming path arrives as one chunk.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"一次性内容"}}]}`)
	}))
	defer srv.Close()

	var chunks []string
	result, err := newTestClient(srv.URL).GenerateStream(context.Background(), testMessages(), func(c string) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"一次性内容"}, chunks)
	assert.False(t, result.Streamed)
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), testMessages())
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, "请求过于频繁，请稍后再试", err.Error())
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"backend unavailable"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), testMessages())
	require.Error(t, err)
	assert.Equal(t, KindUpstreamError, KindOf(err))
	assert.Equal(t, "backend unavailable", err.Error())
}

func TestGenerateBadResponseShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"chat.completion"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), testMessages())
	require.Error(t, err)
	assert.Equal(t, "响应格式不正确", err.Error())
}

func TestGenerateMissingAPIKey(t *testing.T) {
	client := NewClient(config.MagisteriumConfig{APIURL: "http://example.invalid", Model: "magisterium-1"}, zap.NewNop())
	_, err := client.Generate(context.Background(), testMessages())
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, "未配置 API 密钥，请联系管理员", err.Error())
}
