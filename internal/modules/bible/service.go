package bible

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

const defaultSearchLimit = 100

// Service provides read access to books and verses.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// BookSummary is the list shape for the book index.
type BookSummary struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	NameCN   string `json:"name_cn"`
	BookType string `json:"book_type"`
}

// ChapterEntry names one chapter of a book.
type ChapterEntry struct {
	Chapter  int    `json:"chapter"`
	BookName string `json:"book_name"`
}

// Chapter bundles a chapter with its verses and the owning book's name.
type Chapter struct {
	BookID   uint                `json:"bookId"`
	BookName string              `json:"bookName"`
	Chapter  int                 `json:"chapter"`
	Verses   []models.VerseModel `json:"verses"`
}

// NavTarget points at an adjacent chapter.
type NavTarget struct {
	BookID   uint   `json:"bookId"`
	Chapter  int    `json:"chapter"`
	BookName string `json:"bookName"`
}

// Navigation describes the previous and next chapter relative to a position.
// Prev or Next is nil at the ends of the canon.
type Navigation struct {
	Prev           *NavTarget `json:"prev"`
	Next           *NavTarget `json:"next"`
	CurrentBook    string     `json:"currentBook,omitempty"`
	CurrentChapter int        `json:"currentChapter,omitempty"`
}

// SearchResult groups books and verses matching a keyword.
type SearchResult struct {
	Books   []BookSummary       `json:"books"`
	Verses  []models.VerseModel `json:"verses"`
	Keyword string              `json:"keyword,omitempty"`
}

// ListBooks returns all books in canonical order.
func (s *Service) ListBooks(ctx context.Context) ([]BookSummary, error) {
	var books []BookSummary
	err := s.db.WithContext(ctx).
		Model(&models.BookModel{}).
		Select("id", "code", "name_cn", "book_type").
		Order("order_index").
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook returns a single book by ID, nil when absent.
func (s *Service) GetBook(ctx context.Context, bookID uint) (*models.BookModel, error) {
	var book models.BookModel
	err := s.db.WithContext(ctx).First(&book, bookID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}
	return &book, nil
}

// GetBookChapters lists the chapters a book actually has, each annotated with
// the book name.
func (s *Service) GetBookChapters(ctx context.Context, bookID uint) ([]ChapterEntry, error) {
	chapters, err := s.chapterNumbers(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	entries := make([]ChapterEntry, 0, len(chapters))
	for _, ch := range chapters {
		entry := ChapterEntry{Chapter: ch}
		if book != nil {
			entry.BookName = book.NameCN
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetChapterVerses returns a chapter's verses in reading order.
func (s *Service) GetChapterVerses(ctx context.Context, bookID uint, chapter int) ([]models.VerseModel, error) {
	var verses []models.VerseModel
	err := s.db.WithContext(ctx).
		Where("book_id = ? AND chapter = ?", bookID, chapter).
		Order("line_index").
		Find(&verses).Error
	if err != nil {
		return nil, fmt.Errorf("chapter verses %d/%d: %w", bookID, chapter, err)
	}
	return verses, nil
}

// GetChapter returns a chapter with its book name attached.
func (s *Service) GetChapter(ctx context.Context, bookID uint, chapter int) (*Chapter, error) {
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	verses, err := s.GetChapterVerses(ctx, bookID, chapter)
	if err != nil {
		return nil, err
	}

	result := &Chapter{BookID: bookID, Chapter: chapter, Verses: verses}
	if book != nil {
		result.BookName = book.NameCN
	}
	return result, nil
}

// GetChapterNavigation computes prev/next targets, crossing book boundaries:
// chapter 1 points back at the previous book's last chapter, and the last
// chapter forward at the next book's first chapter.
func (s *Service) GetChapterNavigation(ctx context.Context, bookID uint, chapter int) (*Navigation, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	currentIdx := -1
	for i, b := range books {
		if b.ID == bookID {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return &Navigation{}, nil
	}

	current := books[currentIdx]
	maxChapter, err := s.maxChapter(ctx, bookID)
	if err != nil {
		return nil, err
	}

	nav := &Navigation{CurrentBook: current.NameCN, CurrentChapter: chapter}

	if chapter > 1 {
		nav.Prev = &NavTarget{BookID: bookID, Chapter: chapter - 1, BookName: current.NameCN}
	} else if currentIdx > 0 {
		prevBook := books[currentIdx-1]
		prevMax, err := s.maxChapter(ctx, prevBook.ID)
		if err != nil {
			return nil, err
		}
		if prevMax > 0 {
			nav.Prev = &NavTarget{BookID: prevBook.ID, Chapter: prevMax, BookName: prevBook.NameCN}
		}
	}

	if chapter < maxChapter {
		nav.Next = &NavTarget{BookID: bookID, Chapter: chapter + 1, BookName: current.NameCN}
	} else if currentIdx < len(books)-1 {
		nextBook := books[currentIdx+1]
		nextMax, err := s.maxChapter(ctx, nextBook.ID)
		if err != nil {
			return nil, err
		}
		if nextMax > 0 {
			nav.Next = &NavTarget{BookID: nextBook.ID, Chapter: 1, BookName: nextBook.NameCN}
		}
	}

	return nav, nil
}

// Search finds books by name and verses by text for a keyword.
func (s *Service) Search(ctx context.Context, keyword string, limit int) (*SearchResult, error) {
	trimmed := strings.TrimSpace(keyword)
	if trimmed == "" {
		return &SearchResult{Books: []BookSummary{}, Verses: []models.VerseModel{}}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + trimmed + "%"

	var books []BookSummary
	err := s.db.WithContext(ctx).
		Model(&models.BookModel{}).
		Select("id", "code", "name_cn", "book_type").
		Where("name_cn LIKE ?", pattern).
		Order("order_index").
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	var verses []models.VerseModel
	err = s.db.WithContext(ctx).
		Where("text LIKE ?", pattern).
		Order("book_id, chapter, line_index").
		Limit(limit).
		Find(&verses).Error
	if err != nil {
		return nil, fmt.Errorf("search verses: %w", err)
	}

	return &SearchResult{Books: books, Verses: verses, Keyword: trimmed}, nil
}

func (s *Service) chapterNumbers(ctx context.Context, bookID uint) ([]int, error) {
	var chapters []int
	err := s.db.WithContext(ctx).
		Model(&models.VerseModel{}).
		Distinct("chapter").
		Where("book_id = ?", bookID).
		Order("chapter").
		Pluck("chapter", &chapters).Error
	if err != nil {
		return nil, fmt.Errorf("chapters of book %d: %w", bookID, err)
	}
	return chapters, nil
}

func (s *Service) maxChapter(ctx context.Context, bookID uint) (int, error) {
	chapters, err := s.chapterNumbers(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if len(chapters) == 0 {
		return 0, nil
	}
	return chapters[len(chapters)-1], nil
}
