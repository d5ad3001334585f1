package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

func marshalEvent(t *testing.T, ev StreamEvent) string {
	t.Helper()
	b, err := json.Marshal(eventPayload(ev))
	require.NoError(t, err)
	return string(b)
}

func TestEventPayloadWireShapes(t *testing.T) {
	assert.JSONEq(t,
		`{"type":"connected","message":"正在生成内容..."}`,
		marshalEvent(t, ConnectedEvent{Message: "正在生成内容..."}))

	assert.JSONEq(t,
		`{"type":"connecting","message":"正在连接 AI 服务..."}`,
		marshalEvent(t, ConnectingEvent{Message: "正在连接 AI 服务..."}))

	assert.JSONEq(t,
		`{"type":"heartbeat","message":"正在等待 AI 响应...","elapsed":9}`,
		marshalEvent(t, HeartbeatEvent{Message: "正在等待 AI 响应...", Elapsed: 9}))

	assert.JSONEq(t,
		`{"type":"chunk","content":"太初"}`,
		marshalEvent(t, ChunkEvent{Content: "太初"}))

	// Done always carries citations and cached, even when empty.
	assert.JSONEq(t,
		`{"type":"done","citations":[],"cached":false}`,
		marshalEvent(t, DoneEvent{}))

	assert.JSONEq(t,
		`{"type":"done","citations":[{"document_title":"X"}],"cached":true}`,
		marshalEvent(t, DoneEvent{Citations: []models.Citation{{DocumentTitle: "X"}}, Cached: true}))

	assert.JSONEq(t,
		`{"type":"error","message":"未找到该章节的经文"}`,
		marshalEvent(t, ErrorEvent{Message: "未找到该章节的经文"}))
}

func newTestRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(svc, svc.cache, zap.NewNop())
	api := router.Group("/api")
	handler.RegisterRoutes(api, func(c *gin.Context) { c.Next() })
	handler.RegisterAdminRoutes(api, func(c *gin.Context) { c.Next() })
	return router
}

func TestStreamEndpoint(t *testing.T) {
	db := newTestDB(t)
	bookID := seedBible(t, db)
	seedPrompts(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"内容\"}}]}\n\n")
	}))
	defer srv.Close()

	router := newTestRouter(t, newTestService(t, db, srv.URL))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/ai/generate-stream?function_type=summary&book_id=%d&chapter=1", bookID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, `data: {"type":"connected"`), body)
	assert.Contains(t, body, `{"type":"chunk","content":"内容"}`)
	assert.Contains(t, body, `"type":"done"`)
	// Every frame is a data line followed by a blank line.
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		assert.True(t, strings.HasPrefix(frame, "data: "), frame)
	}
}

func TestStreamEndpointValidation(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(t, newTestService(t, db, "http://example.invalid"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-stream?function_type=summary", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"缺少必需参数"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-stream?function_type=bogus&book_id=1&chapter=1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"无效的功能类型"}`, w.Body.String())
}

func TestGenerateEndpointEnvelope(t *testing.T) {
	db := newTestDB(t)
	bookID := seedBible(t, db)
	seedPrompts(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"内容"}}],"citations":[]}`)
	}))
	defer srv.Close()

	router := newTestRouter(t, newTestService(t, db, srv.URL))

	payload := fmt.Sprintf(`{"function_type":"summary","book_id":%d,"chapter":1}`, bookID)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Cached  bool `json:"cached"`
		Data    struct {
			Content          string            `json:"content"`
			Citations        []models.Citation `json:"citations"`
			RelatedQuestions []string          `json:"related_questions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Cached)
	assert.Equal(t, "内容", resp.Data.Content)
	assert.NotNil(t, resp.Data.Citations)
	assert.NotNil(t, resp.Data.RelatedQuestions)

	// Second identical request is served from cache.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/ai/generate", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
}

func TestCacheAdminEndpoints(t *testing.T) {
	db := newTestDB(t)
	cache := NewCache(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, saveParams("缓存内容")))

	svc := newTestService(t, db, "http://example.invalid")
	router := newTestRouter(t, svc)

	var row models.AIResponseModel
	require.NoError(t, db.First(&row).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/ai-results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Success bool `json:"success"`
		Data    struct {
			Results []models.AIResponseModel `json:"results"`
			Stats   Stats                    `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Data.Results, 1)
	assert.Equal(t, int64(1), listResp.Data.Stats.Total)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/ai-results/%d", row.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "缓存内容")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/ai-results/9999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/admin/ai-results/%d", row.ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, cache.Save(ctx, saveParams("再来一条")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/ai-results/clear", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.AIResponseModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGenerateEndpointErrors(t *testing.T) {
	db := newTestDB(t)
	seedPrompts(t, db)
	router := newTestRouter(t, newTestService(t, db, "http://example.invalid"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate",
		strings.NewReader(`{"function_type":"summary","book_id":42,"chapter":7}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"未找到该章节的经文"}`, w.Body.String())
}
