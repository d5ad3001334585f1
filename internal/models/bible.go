package models

// TranslationModel is a Bible translation (e.g. 思高简体).
type TranslationModel struct {
	Base
	Code string `json:"code" gorm:"uniqueIndex;size:64;not null"`
	Name string `json:"name" gorm:"size:128;not null"`
	Lang string `json:"lang" gorm:"size:16;default:'zh'"`
}

func (TranslationModel) TableName() string { return "translations" }

// BookModel is one book of the Bible.
type BookModel struct {
	Base
	TranslationID uint   `json:"translation_id" gorm:"index"`
	Code          string `json:"code"           gorm:"size:64;not null"`
	NameCN        string `json:"name_cn"        gorm:"column:name_cn;size:128;not null"`
	BookType      string `json:"book_type"      gorm:"size:64"`
	Testament     string `json:"testament"      gorm:"size:16"`
	OrderIndex    int    `json:"order_index"    gorm:"index"`
}

func (BookModel) TableName() string { return "books" }

// VerseModel is one verse (or heading line) of a chapter.
type VerseModel struct {
	Base
	TranslationID uint   `json:"translation_id"`
	BookID        uint   `json:"book_id"     gorm:"index:idx_verses_book_chapter"`
	Chapter       int    `json:"chapter"     gorm:"index:idx_verses_book_chapter"`
	VerseRef      string `json:"verse_ref"   gorm:"size:32"`
	LineIndex     int    `json:"line_index"`
	Type          string `json:"type"        gorm:"size:16;default:'verse'"`
	Text          string `json:"text"        gorm:"type:text;not null"`
	ContentHash   string `json:"-"           gorm:"size:64"`
}

func (VerseModel) TableName() string { return "verses" }
