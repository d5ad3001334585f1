package bible

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.BookModel{}, &models.VerseModel{}))
	return NewService(db)
}

// seedCanon creates two books: Genesis with 2 chapters, Exodus with 1.
func seedCanon(t *testing.T, svc *Service) (uint, uint) {
	t.Helper()
	genesis := models.BookModel{Code: "gn", NameCN: "创世纪", BookType: "梅瑟五书", OrderIndex: 1}
	exodus := models.BookModel{Code: "ex", NameCN: "出谷纪", BookType: "梅瑟五书", OrderIndex: 2}
	require.NoError(t, svc.db.Create(&genesis).Error)
	require.NoError(t, svc.db.Create(&exodus).Error)

	verses := []models.VerseModel{
		{BookID: genesis.ID, Chapter: 1, VerseRef: "1:1", LineIndex: 1, Text: "在起初天主创造了天地。"},
		{BookID: genesis.ID, Chapter: 1, VerseRef: "1:2", LineIndex: 2, Text: "大地还是混沌空虚。"},
		{BookID: genesis.ID, Chapter: 2, VerseRef: "2:1", LineIndex: 1, Text: "天地万物都完成了。"},
		{BookID: exodus.ID, Chapter: 1, VerseRef: "1:1", LineIndex: 1, Text: "以色列的儿子们的名字如下。"},
	}
	require.NoError(t, svc.db.Create(&verses).Error)
	return genesis.ID, exodus.ID
}

func TestListBooksOrdered(t *testing.T) {
	svc := newTestService(t)
	seedCanon(t, svc)

	books, err := svc.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "创世纪", books[0].NameCN)
	assert.Equal(t, "出谷纪", books[1].NameCN)
}

func TestGetBookChapters(t *testing.T) {
	svc := newTestService(t)
	genesisID, _ := seedCanon(t, svc)

	chapters, err := svc.GetBookChapters(context.Background(), genesisID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, 1, chapters[0].Chapter)
	assert.Equal(t, 2, chapters[1].Chapter)
	assert.Equal(t, "创世纪", chapters[0].BookName)
}

func TestGetChapter(t *testing.T) {
	svc := newTestService(t)
	genesisID, _ := seedCanon(t, svc)

	chapter, err := svc.GetChapter(context.Background(), genesisID, 1)
	require.NoError(t, err)
	assert.Equal(t, "创世纪", chapter.BookName)
	require.Len(t, chapter.Verses, 2)
	assert.Equal(t, "1:1", chapter.Verses[0].VerseRef)

	empty, err := svc.GetChapter(context.Background(), genesisID, 99)
	require.NoError(t, err)
	assert.Empty(t, empty.Verses)
}

func TestChapterNavigation(t *testing.T) {
	svc := newTestService(t)
	genesisID, exodusID := seedCanon(t, svc)
	ctx := context.Background()

	t.Run("first chapter of first book has no prev", func(t *testing.T) {
		nav, err := svc.GetChapterNavigation(ctx, genesisID, 1)
		require.NoError(t, err)
		assert.Nil(t, nav.Prev)
		require.NotNil(t, nav.Next)
		assert.Equal(t, genesisID, nav.Next.BookID)
		assert.Equal(t, 2, nav.Next.Chapter)
	})

	t.Run("last chapter crosses into next book", func(t *testing.T) {
		nav, err := svc.GetChapterNavigation(ctx, genesisID, 2)
		require.NoError(t, err)
		require.NotNil(t, nav.Prev)
		assert.Equal(t, 1, nav.Prev.Chapter)
		require.NotNil(t, nav.Next)
		assert.Equal(t, exodusID, nav.Next.BookID)
		assert.Equal(t, 1, nav.Next.Chapter)
		assert.Equal(t, "出谷纪", nav.Next.BookName)
	})

	t.Run("first chapter of later book points back", func(t *testing.T) {
		nav, err := svc.GetChapterNavigation(ctx, exodusID, 1)
		require.NoError(t, err)
		require.NotNil(t, nav.Prev)
		assert.Equal(t, genesisID, nav.Prev.BookID)
		assert.Equal(t, 2, nav.Prev.Chapter)
		assert.Nil(t, nav.Next)
	})

	t.Run("unknown book yields empty navigation", func(t *testing.T) {
		nav, err := svc.GetChapterNavigation(ctx, 999, 1)
		require.NoError(t, err)
		assert.Nil(t, nav.Prev)
		assert.Nil(t, nav.Next)
	})
}

func TestSearch(t *testing.T) {
	svc := newTestService(t)
	seedCanon(t, svc)
	ctx := context.Background()

	result, err := svc.Search(ctx, "创造", 10)
	require.NoError(t, err)
	assert.Empty(t, result.Books)
	require.Len(t, result.Verses, 1)
	assert.Equal(t, "1:1", result.Verses[0].VerseRef)

	result, err = svc.Search(ctx, "创世", 10)
	require.NoError(t, err)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "创世纪", result.Books[0].NameCN)

	result, err = svc.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, result.Books)
	assert.Empty(t, result.Verses)
}
