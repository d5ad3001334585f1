package models

import "time"

// Citation is one structured source reference returned by the Magisterium API.
type Citation struct {
	CitedText         string `json:"cited_text,omitempty"`
	DocumentTitle     string `json:"document_title,omitempty"`
	DocumentAuthor    string `json:"document_author,omitempty"`
	DocumentYear      string `json:"document_year,omitempty"`
	DocumentReference string `json:"document_reference,omitempty"`
	SourceURL         string `json:"source_url,omitempty"`
}

// AIResponseModel is one cached generation result. Rows are append-only:
// the same (book, chapter, function, lang) key may have many rows and the
// latest non-expired one wins at lookup time.
type AIResponseModel struct {
	Base
	BookID           uint        `json:"book_id"           gorm:"index:idx_ai_cache_key;not null"`
	Chapter          int         `json:"chapter"           gorm:"index:idx_ai_cache_key;not null"`
	FunctionType     string      `json:"function_type"     gorm:"index:idx_ai_cache_key;size:32;not null"`
	Lang             string      `json:"lang"              gorm:"index:idx_ai_cache_key;size:16;default:'zh'"`
	InputHash        string      `json:"input_hash"        gorm:"size:64"` // sha256 of the chapter text the answer was generated from
	Content          string      `json:"content"           gorm:"type:longtext;not null"`
	Citations        []Citation  `json:"citations"         gorm:"type:longtext;serializer:json"`
	RelatedQuestions StringArray `json:"related_questions" gorm:"type:longtext"`
	APIRequest       string      `json:"-"                 gorm:"type:longtext"` // raw outbound request JSON, audit only
	APIResponse      string      `json:"-"                 gorm:"type:longtext"` // raw upstream response JSON, audit only
	ExpiresAt        *time.Time  `json:"expires_at"        gorm:"index"`         // nil = never expires
}

func (AIResponseModel) TableName() string { return "ai_responses_cache" }
