package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/7310C7310C/sigao-ai/internal/config"
	"github.com/7310C7310C/sigao-ai/internal/pkg/jwt"
	"github.com/7310C7310C/sigao-ai/internal/pkg/response"
)

const tokenTTL = 24 * time.Hour

// Handler implements the admin login endpoint.
type Handler struct {
	admin config.AdminConfig
}

func NewHandler(admin config.AdminConfig) *Handler {
	return &Handler{admin: admin}
}

// RegisterRoutes mounts the admin login route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/admin/login", h.login)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请输入用户名和密码")
		return
	}

	if req.Username != h.admin.Username || !h.verifyPassword(req.Password) {
		response.Unauthorized(c)
		return
	}

	token, err := jwt.Sign(req.Username, tokenTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"token": token, "username": req.Username})
}

// verifyPassword accepts either a bcrypt hash or a plain value in config.
func (h *Handler) verifyPassword(candidate string) bool {
	stored := h.admin.Password
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
