package ai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/7310C7310C/sigao-ai/internal/models"
	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

// Handler exposes the generation endpoints and the cache admin.
type Handler struct {
	svc   *Service
	cache *Cache
	log   *zap.Logger
}

func NewHandler(svc *Service, cache *Cache, log *zap.Logger) *Handler {
	return &Handler{svc: svc, cache: cache, log: log}
}

// RegisterRoutes mounts the public generation routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, rateLimitMW gin.HandlerFunc) {
	rg.POST("/ai/generate", rateLimitMW, h.generate)
	rg.GET("/ai/generate-stream", rateLimitMW, h.generateStream)
}

// RegisterAdminRoutes mounts the cache management routes behind auth.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := rg.Group("/admin/ai-results", authMW)
	admin.GET("", h.listResults)
	admin.GET("/:id", h.getResult)
	admin.DELETE("/:id", h.deleteResult)
	admin.POST("/clear", h.clearResults)
}

type generateRequest struct {
	FunctionType    string `json:"function_type"`
	BookID          uint   `json:"book_id"`
	Chapter         int    `json:"chapter"`
	Lang            string `json:"lang"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "缺少必需参数：function_type, book_id, chapter")
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), GenerateParams{
		FunctionType:    req.FunctionType,
		BookID:          req.BookID,
		Chapter:         req.Chapter,
		Lang:            req.Lang,
		ForceRegenerate: req.ForceRegenerate,
	})
	if err != nil {
		c.AbortWithStatusJSON(HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"cached":  result.Cached,
	})
}

func (h *Handler) generateStream(c *gin.Context) {
	bookID, _ := strconv.ParseUint(c.Query("book_id"), 10, 32)
	chapter, _ := strconv.Atoi(c.Query("chapter"))
	params := GenerateParams{
		FunctionType:    c.Query("function_type"),
		BookID:          uint(bookID),
		Chapter:         chapter,
		Lang:            c.Query("lang"),
		ForceRegenerate: c.Query("force_regenerate") == "true",
	}

	// Validation failures are plain JSON; SSE headers only go out for a
	// stream that will actually run.
	if params.FunctionType == "" || params.BookID == 0 || params.Chapter == 0 {
		response.BadRequest(c, "缺少必需参数")
		return
	}
	if !IsValidFunction(params.FunctionType) {
		response.BadRequest(c, "无效的功能类型")
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()

	flusher, _ := c.Writer.(http.Flusher)
	for event := range h.svc.GenerateStream(c.Request.Context(), params) {
		payload, err := json.Marshal(eventPayload(event))
		if err != nil {
			h.log.Error("event marshal failed", zap.Error(err))
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// eventPayload maps every stream event onto its wire shape.
func eventPayload(event StreamEvent) interface{} {
	switch ev := event.(type) {
	case ConnectedEvent:
		return struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}{"connected", ev.Message}
	case ConnectingEvent:
		return struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}{"connecting", ev.Message}
	case HeartbeatEvent:
		return struct {
			Type    string `json:"type"`
			Message string `json:"message"`
			Elapsed int    `json:"elapsed"`
		}{"heartbeat", ev.Message, ev.Elapsed}
	case ChunkEvent:
		return struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{"chunk", ev.Content}
	case DoneEvent:
		citations := ev.Citations
		if citations == nil {
			citations = []models.Citation{}
		}
		return struct {
			Type      string            `json:"type"`
			Citations []models.Citation `json:"citations"`
			Cached    bool              `json:"cached"`
		}{"done", citations, ev.Cached}
	case ErrorEvent:
		return struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}{"error", ev.Message}
	default:
		return struct {
			Type string `json:"type"`
		}{"error"}
	}
}

func (h *Handler) listResults(c *gin.Context) {
	results, err := h.cache.ListAll(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"results": results, "stats": stats})
}

func (h *Handler) getResult(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的 ID")
		return
	}
	row, err := h.cache.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if row == nil {
		response.NotFound(c, "记录不存在")
		return
	}
	response.OK(c, row)
}

func (h *Handler) deleteResult(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的 ID")
		return
	}
	deleted, err := h.cache.DeleteByID(c.Request.Context(), uint(id))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !deleted {
		response.NotFound(c, "记录不存在")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

func (h *Handler) clearResults(c *gin.Context) {
	if err := h.cache.TruncateAll(c.Request.Context()); err != nil {
		response.InternalError(c, err)
		return
	}
	h.log.Info("ai response cache cleared")
	response.OK(c, gin.H{"cleared": true})
}
