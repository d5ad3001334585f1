package prompt

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/7310C7310C/sigao-ai/internal/models"
	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

// Handler exposes the function list plus the admin prompt CRUD.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public function listing.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ai/functions", h.listFunctions)
}

// RegisterAdminRoutes mounts the prompt management CRUD behind auth.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	admin := rg.Group("/admin/prompts", authMW)
	admin.GET("", h.list)
	admin.GET("/:id", h.get)
	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.POST("/:id/toggle", h.toggle)
	admin.DELETE("/:id", h.remove)
}

func (h *Handler) listFunctions(c *gin.Context) {
	options, err := h.svc.ActiveFunctions(c.Request.Context(), c.Query("lang"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, options)
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, rows)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if row == nil {
		response.NotFound(c, "提示词不存在")
		return
	}
	response.OK(c, row)
}

type createPromptRequest struct {
	PromptKey      string `json:"prompt_key" binding:"required"`
	PromptName     string `json:"prompt_name" binding:"required"`
	PromptType     string `json:"prompt_type"`
	FunctionType   string `json:"function_type"`
	Lang           string `json:"lang"`
	PromptTemplate string `json:"prompt_template" binding:"required"`
	OrderIndex     int    `json:"order_index"`
}

func (h *Handler) create(c *gin.Context) {
	var req createPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数不完整")
		return
	}

	row := &models.AIPromptModel{
		PromptKey:      req.PromptKey,
		PromptName:     req.PromptName,
		PromptType:     req.PromptType,
		FunctionType:   req.FunctionType,
		Lang:           req.Lang,
		PromptTemplate: req.PromptTemplate,
		IsActive:       true,
		OrderIndex:     req.OrderIndex,
	}
	if err := h.svc.Create(c.Request.Context(), row); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, row)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var fields UpdateFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.BadRequest(c, "参数格式不正确")
		return
	}
	if err := h.svc.Update(c.Request.Context(), id, fields); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"updated": true})
}

func (h *Handler) toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.ToggleActive(c.Request.Context(), id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"toggled": true})
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的 ID")
		return 0, false
	}
	return uint(id), true
}
