package models

const (
	PromptTypeSystem   = "system"
	PromptTypeFunction = "function"
)

// AIPromptModel is a stored prompt template, seeded at deploy time and
// edited through the admin API. Generation reads templates as-is.
type AIPromptModel struct {
	Base
	PromptKey      string `json:"prompt_key"      gorm:"size:128;not null"`
	PromptName     string `json:"prompt_name"     gorm:"size:128"`
	PromptType     string `json:"prompt_type"     gorm:"size:16;index;not null"` // system | function
	FunctionType   string `json:"function_type"   gorm:"size:32;index"`          // summary | history | saints | prayer
	Lang           string `json:"lang"            gorm:"size:16;index;default:'zh'"`
	PromptTemplate string `json:"prompt_template" gorm:"type:text;not null"`
	IsActive       bool   `json:"is_active"       gorm:"default:true"`
	OrderIndex     int    `json:"order_index"     gorm:"default:0"`
}

func (AIPromptModel) TableName() string { return "ai_prompts" }
