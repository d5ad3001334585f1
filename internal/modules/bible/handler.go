package bible

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

// Handler exposes the public bible endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the read-only bible routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/books", h.listBooks)
	rg.GET("/book/:bookId", h.getBookChapters)
	rg.GET("/verses", h.getChapterVerses)
	rg.GET("/navigation", h.getNavigation)
	rg.GET("/search", h.search)
}

func (h *Handler) listBooks(c *gin.Context) {
	books, err := h.svc.ListBooks(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, books)
}

func (h *Handler) getBookChapters(c *gin.Context) {
	bookID, err := strconv.ParseUint(c.Param("bookId"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的经卷 ID")
		return
	}
	chapters, err := h.svc.GetBookChapters(c.Request.Context(), uint(bookID))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, chapters)
}

func (h *Handler) getChapterVerses(c *gin.Context) {
	bookID, chapter, ok := parseChapterQuery(c)
	if !ok {
		return
	}
	verses, err := h.svc.GetChapterVerses(c.Request.Context(), bookID, chapter)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, verses)
}

func (h *Handler) getNavigation(c *gin.Context) {
	bookID, chapter, ok := parseChapterQuery(c)
	if !ok {
		return
	}
	nav, err := h.svc.GetChapterNavigation(c.Request.Context(), bookID, chapter)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, nav)
}

func (h *Handler) search(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	result, err := h.svc.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, result)
}

func parseChapterQuery(c *gin.Context) (uint, int, bool) {
	bookID, err := strconv.ParseUint(c.Query("bookId"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的经卷 ID")
		return 0, 0, false
	}
	chapter, err := strconv.Atoi(c.Query("chapter"))
	if err != nil || chapter < 1 {
		response.BadRequest(c, "无效的章节号")
		return 0, 0, false
	}
	return uint(bookID), chapter, true
}
