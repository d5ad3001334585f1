package ai

import (
	"fmt"

	"github.com/7310C7310C/sigao-ai/internal/models"
)

// Valid generation function types.
const (
	FunctionSummary = "summary"
	FunctionHistory = "history"
	FunctionSaints  = "saints"
	FunctionPrayer  = "prayer"
)

var validFunctions = map[string]bool{
	FunctionSummary: true,
	FunctionHistory: true,
	FunctionSaints:  true,
	FunctionPrayer:  true,
}

// IsValidFunction reports whether ft names a known generation function.
func IsValidFunction(ft string) bool {
	return validFunctions[ft]
}

// GenerateParams identifies one generation request.
type GenerateParams struct {
	FunctionType    string
	BookID          uint
	Chapter         int
	Lang            string
	ForceRegenerate bool
}

// Validate checks required fields and the function type.
func (p *GenerateParams) Validate() *Error {
	if p.FunctionType == "" || p.BookID == 0 || p.Chapter == 0 {
		return newError(KindInvalidRequest, "缺少必需参数：function_type, book_id, chapter")
	}
	if !IsValidFunction(p.FunctionType) {
		return newError(KindInvalidRequest, fmt.Sprintf("无效的功能类型：%s", p.FunctionType))
	}
	if p.Lang == "" {
		p.Lang = "zh"
	}
	return nil
}

func (p *GenerateParams) cacheKey() string {
	return fmt.Sprintf("%d:%d:%s:%s", p.BookID, p.Chapter, p.FunctionType, p.Lang)
}

// GenerateResult is the buffered generation outcome, footnotes already removed.
type GenerateResult struct {
	Content          string            `json:"content"`
	Citations        []models.Citation `json:"citations"`
	RelatedQuestions []string          `json:"related_questions"`
	Cached           bool              `json:"-"`
}

// StreamEvent is one progress event of a streaming generation. The concrete
// types below are the complete set.
type StreamEvent interface {
	isStreamEvent()
}

// ConnectedEvent is emitted once, immediately after the stream opens.
type ConnectedEvent struct {
	Message string
}

// ConnectingEvent signals that the upstream request is about to be made.
type ConnectingEvent struct {
	Message string
}

// HeartbeatEvent keeps the stream alive while the upstream is silent.
type HeartbeatEvent struct {
	Message string
	Elapsed int
}

// ChunkEvent carries one piece of generated content.
type ChunkEvent struct {
	Content string
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	Citations []models.Citation
	Cached    bool
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Message string
}

func (ConnectedEvent) isStreamEvent()  {}
func (ConnectingEvent) isStreamEvent() {}
func (HeartbeatEvent) isStreamEvent()  {}
func (ChunkEvent) isStreamEvent()      {}
func (DoneEvent) isStreamEvent()       {}
func (ErrorEvent) isStreamEvent()      {}
