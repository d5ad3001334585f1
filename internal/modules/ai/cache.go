package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

// Cache stores generation results in the database. Writes are append-only:
// a regeneration inserts a fresh row and lookups pick the newest live one.
type Cache struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCache(db *gorm.DB, log *zap.Logger) *Cache {
	return &Cache{db: db, log: log}
}

// Find returns the latest non-expired row for a cache key, nil on miss.
// The stored input hash is informational and not part of the lookup.
func (c *Cache) Find(ctx context.Context, bookID uint, chapter int, functionType, lang string) (*models.AIResponseModel, error) {
	var row models.AIResponseModel
	err := c.db.WithContext(ctx).
		Where("book_id = ? AND chapter = ? AND function_type = ? AND lang = ?", bookID, chapter, functionType, lang).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(KindCacheIO, "查询缓存失败", err)
	}
	return &row, nil
}

// SaveParams carries everything persisted with one generation.
type SaveParams struct {
	BookID           uint
	Chapter          int
	FunctionType     string
	Lang             string
	Content          string
	Citations        []models.Citation
	RelatedQuestions []string
	SourceText       string
	TTLDays          int // <= 0 means the row never expires
	APIRequest       string
	APIResponse      string
}

// Save appends a cache row. Content is stored raw, footnotes included.
func (c *Cache) Save(ctx context.Context, p SaveParams) error {
	row := models.AIResponseModel{
		BookID:           p.BookID,
		Chapter:          p.Chapter,
		FunctionType:     p.FunctionType,
		Lang:             p.Lang,
		InputHash:        hashInput(p.SourceText),
		Content:          p.Content,
		Citations:        p.Citations,
		RelatedQuestions: p.RelatedQuestions,
		APIRequest:       p.APIRequest,
		APIResponse:      p.APIResponse,
	}
	if p.TTLDays > 0 {
		expires := time.Now().AddDate(0, 0, p.TTLDays)
		row.ExpiresAt = &expires
	}

	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapError(KindCacheIO, "保存缓存失败", err)
	}
	return nil
}

// Delete removes all rows for a cache key, used before a forced regeneration.
func (c *Cache) Delete(ctx context.Context, bookID uint, chapter int, functionType, lang string) error {
	err := c.db.WithContext(ctx).
		Where("book_id = ? AND chapter = ? AND function_type = ? AND lang = ?", bookID, chapter, functionType, lang).
		Delete(&models.AIResponseModel{}).Error
	if err != nil {
		return wrapError(KindCacheIO, "删除缓存失败", err)
	}
	return nil
}

// ListAll returns every cache row, newest first, for the admin screen.
func (c *Cache) ListAll(ctx context.Context) ([]models.AIResponseModel, error) {
	var rows []models.AIResponseModel
	err := c.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapError(KindCacheIO, "查询缓存列表失败", err)
	}
	return rows, nil
}

// GetByID returns one cache row, nil when absent.
func (c *Cache) GetByID(ctx context.Context, id uint) (*models.AIResponseModel, error) {
	var row models.AIResponseModel
	err := c.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(KindCacheIO, fmt.Sprintf("查询缓存 %d 失败", id), err)
	}
	return &row, nil
}

// DeleteByID removes one row, reporting whether it existed.
func (c *Cache) DeleteByID(ctx context.Context, id uint) (bool, error) {
	result := c.db.WithContext(ctx).Delete(&models.AIResponseModel{}, id)
	if result.Error != nil {
		return false, wrapError(KindCacheIO, fmt.Sprintf("删除缓存 %d 失败", id), result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Stats summarizes row counts per function type.
type Stats struct {
	Total   int64 `json:"total"`
	Summary int64 `json:"summary"`
	History int64 `json:"history"`
	Saints  int64 `json:"saints"`
	Prayer  int64 `json:"prayer"`
}

func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	base := c.db.WithContext(ctx).Model(&models.AIResponseModel{})

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, wrapError(KindCacheIO, "统计缓存失败", err)
	}

	counts := map[string]*int64{
		FunctionSummary: &stats.Summary,
		FunctionHistory: &stats.History,
		FunctionSaints:  &stats.Saints,
		FunctionPrayer:  &stats.Prayer,
	}
	for ft, target := range counts {
		err := c.db.WithContext(ctx).
			Model(&models.AIResponseModel{}).
			Where("function_type = ?", ft).
			Count(target).Error
		if err != nil {
			return nil, wrapError(KindCacheIO, "统计缓存失败", err)
		}
	}
	return &stats, nil
}

// TruncateAll empties the cache table.
func (c *Cache) TruncateAll(ctx context.Context) error {
	err := c.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.AIResponseModel{}).Error
	if err != nil {
		return wrapError(KindCacheIO, "清空缓存失败", err)
	}
	return nil
}

func hashInput(sourceText string) string {
	sum := sha256.Sum256([]byte(sourceText))
	return hex.EncodeToString(sum[:])
}
