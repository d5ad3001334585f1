package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

const defaultLang = "zh"

// Message is one chat message sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionOption is the list shape for the per-chapter feature buttons.
type FunctionOption struct {
	FunctionType string `json:"function_type"`
	PromptName   string `json:"prompt_name"`
}

// Service assembles chat messages from stored prompt templates and backs the
// admin CRUD.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetSystemPrompt returns the active system prompt for a language, nil when
// none is configured.
func (s *Service) GetSystemPrompt(ctx context.Context, lang string) (*models.AIPromptModel, error) {
	var row models.AIPromptModel
	err := s.db.WithContext(ctx).
		Where("prompt_type = ? AND lang = ? AND is_active = ?", models.PromptTypeSystem, normalizeLang(lang), true).
		Order("order_index ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}
	return &row, nil
}

// GetFunctionPrompt returns the active prompt for a function type, nil when
// none is configured.
func (s *Service) GetFunctionPrompt(ctx context.Context, functionType, lang string) (*models.AIPromptModel, error) {
	var row models.AIPromptModel
	err := s.db.WithContext(ctx).
		Where("prompt_type = ? AND function_type = ? AND lang = ? AND is_active = ?",
			models.PromptTypeFunction, functionType, normalizeLang(lang), true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("function prompt %q: %w", functionType, err)
	}
	return &row, nil
}

// ActiveFunctions lists the enabled function prompts in display order.
func (s *Service) ActiveFunctions(ctx context.Context, lang string) ([]FunctionOption, error) {
	var options []FunctionOption
	err := s.db.WithContext(ctx).
		Model(&models.AIPromptModel{}).
		Select("function_type", "prompt_name").
		Where("prompt_type = ? AND lang = ? AND is_active = ?", models.PromptTypeFunction, normalizeLang(lang), true).
		Order("order_index ASC").
		Find(&options).Error
	if err != nil {
		return nil, fmt.Errorf("active functions: %w", err)
	}
	return options, nil
}

// BuildMessages assembles the chat message list: the system prompt verbatim,
// then the function prompt with template variables substituted. A missing
// template yields a shorter (possibly empty) list, never an error.
func (s *Service) BuildMessages(ctx context.Context, functionType string, variables map[string]string, lang string) ([]Message, error) {
	messages := make([]Message, 0, 2)

	systemPrompt, err := s.GetSystemPrompt(ctx, lang)
	if err != nil {
		return nil, err
	}
	if systemPrompt != nil {
		messages = append(messages, Message{Role: "system", Content: systemPrompt.PromptTemplate})
	}

	functionPrompt, err := s.GetFunctionPrompt(ctx, functionType, lang)
	if err != nil {
		return nil, err
	}
	if functionPrompt != nil && functionPrompt.PromptTemplate != "" {
		messages = append(messages, Message{
			Role:    "user",
			Content: Substitute(functionPrompt.PromptTemplate, variables),
		})
	}

	return messages, nil
}

// Substitute replaces {key} placeholders with variable values. Only keys with
// non-empty values are substituted; unmatched placeholders stay as written.
func Substitute(template string, variables map[string]string) string {
	content := template
	for key, value := range variables {
		if value == "" {
			continue
		}
		content = strings.ReplaceAll(content, "{"+key+"}", value)
	}
	return content
}

// List returns every prompt, system prompts first, for the admin screen.
func (s *Service) List(ctx context.Context) ([]models.AIPromptModel, error) {
	var rows []models.AIPromptModel
	err := s.db.WithContext(ctx).
		Order("prompt_type DESC, order_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return rows, nil
}

// GetByID returns one prompt, nil when absent.
func (s *Service) GetByID(ctx context.Context, id uint) (*models.AIPromptModel, error) {
	var row models.AIPromptModel
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt %d: %w", id, err)
	}
	return &row, nil
}

// Create stores a new prompt.
func (s *Service) Create(ctx context.Context, row *models.AIPromptModel) error {
	if row.PromptType == "" {
		row.PromptType = models.PromptTypeFunction
	}
	if row.Lang == "" {
		row.Lang = defaultLang
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create prompt: %w", err)
	}
	return nil
}

// UpdateFields applies a partial update. Only name, template and active flag
// are editable after creation.
type UpdateFields struct {
	PromptName     *string `json:"prompt_name"`
	PromptTemplate *string `json:"prompt_template"`
	IsActive       *bool   `json:"is_active"`
}

func (s *Service) Update(ctx context.Context, id uint, fields UpdateFields) error {
	updates := map[string]interface{}{}
	if fields.PromptName != nil {
		updates["prompt_name"] = *fields.PromptName
	}
	if fields.PromptTemplate != nil {
		updates["prompt_template"] = *fields.PromptTemplate
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}
	if len(updates) == 0 {
		return errors.New("没有要更新的字段")
	}

	err := s.db.WithContext(ctx).
		Model(&models.AIPromptModel{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update prompt %d: %w", id, err)
	}
	return nil
}

// ToggleActive flips the enabled flag.
func (s *Service) ToggleActive(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.AIPromptModel{}).
		Where("id = ?", id).
		Update("is_active", gorm.Expr("NOT is_active")).Error
	if err != nil {
		return fmt.Errorf("toggle prompt %d: %w", id, err)
	}
	return nil
}

// Delete removes a prompt.
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Delete(&models.AIPromptModel{}, id).Error
	if err != nil {
		return fmt.Errorf("delete prompt %d: %w", id, err)
	}
	return nil
}

func normalizeLang(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return defaultLang
	}
	return lang
}
