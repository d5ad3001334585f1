package ai

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/7310C7310C/sigao-ai/internal/config"
	"github.com/7310C7310C/sigao-ai/internal/models"
	"github.com/7310C7310C/sigao-ai/internal/modules/bible"
	"github.com/7310C7310C/sigao-ai/internal/modules/prompt"
)

const (
	heartbeatInterval = 3 * time.Second
	replayChunkSize   = 10
	replayInterval    = 10 * time.Millisecond

	msgConnected     = "正在生成内容..."
	msgConnecting    = "正在连接 AI 服务..."
	msgWaiting       = "正在等待 AI 响应..."
	msgDeepAnalysis  = "正在深度分析经文..."
	msgFinalizing    = "正在整理内容..."
	msgVersesMissing = "未找到该章节的经文"
	msgNoTemplate    = "无法获取提示词模板"
)

// Service orchestrates generation: cache lookup, prompt assembly, the
// upstream call and cache writeback, over both buffered and streaming
// transports.
type Service struct {
	cfg     config.MagisteriumConfig
	bible   *bible.Service
	prompts *prompt.Service
	client  *Client
	cache   *Cache
	log     *zap.Logger
	group   singleflight.Group
}

func NewService(cfg config.MagisteriumConfig, bibleSvc *bible.Service, promptSvc *prompt.Service, client *Client, cache *Cache, log *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		bible:   bibleSvc,
		prompts: promptSvc,
		client:  client,
		cache:   cache,
		log:     log,
	}
}

// Generate runs a buffered generation. Cache errors degrade to a miss, and
// concurrent requests for the same key share one upstream call.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.log.Info("generate request",
		zap.String("function_type", params.FunctionType),
		zap.Uint("book_id", params.BookID),
		zap.Int("chapter", params.Chapter),
		zap.Bool("force", params.ForceRegenerate),
	)

	if params.ForceRegenerate {
		result, err := s.generateAndCache(ctx, params)
		if err != nil {
			return nil, err
		}
		return finalize(result, false), nil
	}

	cached, err := s.cache.Find(ctx, params.BookID, params.Chapter, params.FunctionType, params.Lang)
	if err != nil {
		s.log.Error("cache lookup failed", zap.Error(err))
	} else if cached != nil {
		s.log.Info("cache hit",
			zap.String("function_type", params.FunctionType),
			zap.Uint("book_id", params.BookID),
			zap.Int("chapter", params.Chapter),
		)
		return finalize(&GenerateResult{
			Content:          cached.Content,
			Citations:        cached.Citations,
			RelatedQuestions: cached.RelatedQuestions,
		}, true), nil
	}

	v, err, _ := s.group.Do(params.cacheKey(), func() (interface{}, error) {
		return s.generateAndCache(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return finalize(v.(*GenerateResult), false), nil
}

// GenerateStream runs a streaming generation, returning the event channel.
// The channel is closed when the stream finishes; cancelling ctx stops the
// generation and the heartbeat.
func (s *Service) GenerateStream(ctx context.Context, params GenerateParams) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go s.streamGenerate(ctx, params, events)
	return events
}

func (s *Service) streamGenerate(ctx context.Context, params GenerateParams, events chan StreamEvent) {
	defer close(events)

	emit := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if err := params.Validate(); err != nil {
		emit(ErrorEvent{Message: err.Message})
		return
	}

	s.log.Info("stream generate request",
		zap.String("function_type", params.FunctionType),
		zap.Uint("book_id", params.BookID),
		zap.Int("chapter", params.Chapter),
		zap.Bool("force", params.ForceRegenerate),
	)

	if !emit(ConnectedEvent{Message: msgConnected}) {
		return
	}

	if params.ForceRegenerate {
		if err := s.cache.Delete(ctx, params.BookID, params.Chapter, params.FunctionType, params.Lang); err != nil {
			s.log.Warn("stale cache delete failed", zap.Error(err))
		}
	} else {
		cached, err := s.cache.Find(ctx, params.BookID, params.Chapter, params.FunctionType, params.Lang)
		if err != nil {
			s.log.Error("cache lookup failed", zap.Error(err))
		} else if cached != nil {
			s.log.Info("cache hit, replaying",
				zap.String("function_type", params.FunctionType),
				zap.Uint("book_id", params.BookID),
				zap.Int("chapter", params.Chapter),
			)
			s.replayCached(ctx, cached, emit)
			return
		}
	}

	chapterData, err := s.bible.GetChapter(ctx, params.BookID, params.Chapter)
	if err != nil {
		s.log.Error("chapter fetch failed", zap.Error(err))
		emit(ErrorEvent{Message: "获取经文失败：" + err.Error()})
		return
	}
	if len(chapterData.Verses) == 0 {
		emit(ErrorEvent{Message: msgVersesMissing})
		return
	}

	versesText := joinVerses(chapterData.Verses)
	variables := promptVariables(chapterData.BookName, params.Chapter, versesText)

	if !emit(ConnectingEvent{Message: msgConnecting}) {
		return
	}

	hb := s.startHeartbeat(ctx, events)
	defer hb.Stop()

	messages, err := s.prompts.BuildMessages(ctx, params.FunctionType, variables, params.Lang)
	if err != nil {
		hb.Stop()
		s.log.Error("prompt assembly failed", zap.Error(err))
		emit(ErrorEvent{Message: err.Error()})
		return
	}
	if len(messages) == 0 {
		hb.Stop()
		emit(ErrorEvent{Message: msgNoTemplate})
		return
	}

	trimmer := &streamTrimmer{}
	var accumulated strings.Builder
	var firstChunk sync.Once

	onChunk := func(content string) {
		firstChunk.Do(func() {
			hb.Stop()
			s.log.Info("first content chunk arrived", zap.String("function_type", params.FunctionType))
		})
		valid := trimmer.next(content)
		accumulated.WriteString(valid)
		if valid != "" {
			emit(ChunkEvent{Content: valid})
		}
	}

	result, err := s.client.GenerateStream(ctx, messages, onChunk)
	hb.Stop()
	if err != nil {
		s.log.Error("stream generation failed",
			zap.Error(err),
			zap.String("function_type", params.FunctionType),
		)
		emit(ErrorEvent{Message: err.Error()})
		return
	}

	s.saveResult(context.WithoutCancel(ctx), params, accumulated.String(), versesText, result)

	emit(DoneEvent{Citations: nonNilCitations(result.Citations), Cached: false})
}

func (s *Service) generateAndCache(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	chapterData, err := s.bible.GetChapter(ctx, params.BookID, params.Chapter)
	if err != nil {
		return nil, err
	}
	if len(chapterData.Verses) == 0 {
		return nil, newError(KindNotFound, msgVersesMissing)
	}

	versesText := joinVerses(chapterData.Verses)
	variables := promptVariables(chapterData.BookName, params.Chapter, versesText)

	messages, err := s.prompts.BuildMessages(ctx, params.FunctionType, variables, params.Lang)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, newError(KindTemplateMissing, msgNoTemplate)
	}

	result, err := s.client.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	s.saveResult(ctx, params, result.Content, versesText, result)

	return &GenerateResult{
		Content:          result.Content,
		Citations:        result.Citations,
		RelatedQuestions: result.RelatedQuestions,
	}, nil
}

// saveResult persists a generation outcome. Write failures are logged and
// swallowed so a broken cache never costs the user their answer.
func (s *Service) saveResult(ctx context.Context, params GenerateParams, content, versesText string, result *UpstreamResult) {
	err := s.cache.Save(ctx, SaveParams{
		BookID:           params.BookID,
		Chapter:          params.Chapter,
		FunctionType:     params.FunctionType,
		Lang:             params.Lang,
		Content:          content,
		Citations:        result.Citations,
		RelatedQuestions: result.RelatedQuestions,
		SourceText:       versesText,
		TTLDays:          s.cfg.CacheDays,
		APIRequest:       string(result.RawRequest),
		APIResponse:      s.buildAPIResponse(result),
	})
	if err != nil {
		s.log.Error("cache write failed", zap.Error(err))
		return
	}
	s.log.Info("generation cached",
		zap.String("function_type", params.FunctionType),
		zap.Int("content_length", len(content)),
	)
}

// buildAPIResponse reconstructs the raw upstream response for auditing. A
// streamed response is stored as the full chunk sequence.
func (s *Service) buildAPIResponse(result *UpstreamResult) string {
	if len(result.ResponseChunks) == 0 {
		return ""
	}
	if !result.Streamed {
		return string(result.ResponseChunks[0])
	}

	raw, err := json.Marshal(map[string]interface{}{
		"model":             s.cfg.Model,
		"stream":            true,
		"chunks":            result.ResponseChunks,
		"citations":         result.Citations,
		"related_questions": result.RelatedQuestions,
	})
	if err != nil {
		s.log.Warn("api response marshal failed", zap.Error(err))
		return ""
	}
	return string(raw)
}

// replayCached streams a cache row back in small pieces so the client's
// typewriter effect still works.
func (s *Service) replayCached(ctx context.Context, row *models.AIResponseModel, emit func(StreamEvent) bool) {
	content := TrimFootnotes(row.Content)
	runes := []rune(content)

	for i := 0; i < len(runes); i += replayChunkSize {
		end := i + replayChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if !emit(ChunkEvent{Content: string(runes[i:end])}) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(replayInterval):
		}
	}

	emit(DoneEvent{Citations: nonNilCitations(row.Citations), Cached: true})
}

// heartbeat emits progress events while the upstream is silent. Stop blocks
// until the goroutine has exited so no event is sent after the channel
// owner moves on.
type heartbeat struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *Service) startHeartbeat(ctx context.Context, events chan<- StreamEvent) *heartbeat {
	hb := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		count := 0
		for {
			select {
			case <-hb.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				count++
				message := msgWaiting
				if count >= 6 {
					message = msgFinalizing
				} else if count >= 3 {
					message = msgDeepAnalysis
				}
				select {
				case events <- HeartbeatEvent{Message: message, Elapsed: count * int(heartbeatInterval.Seconds())}:
				case <-hb.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return hb
}

func (hb *heartbeat) Stop() {
	hb.stopOnce.Do(func() { close(hb.stop) })
	<-hb.done
}

// joinVerses formats a chapter as one line per verse, "ref text" when a
// reference exists.
func joinVerses(verses []models.VerseModel) string {
	lines := make([]string, 0, len(verses))
	for _, v := range verses {
		ref := ""
		if v.VerseRef != "" {
			ref = v.VerseRef + " "
		}
		lines = append(lines, ref+v.Text)
	}
	return strings.Join(lines, "\n")
}

func promptVariables(bookName string, chapter int, versesText string) map[string]string {
	chapterNum := strconv.Itoa(chapter)
	return map[string]string{
		"verses":      versesText,
		"chapter":     bookName + " 第 " + chapterNum + " 章",
		"book":        bookName,
		"chapter_num": chapterNum,
	}
}

// finalize removes footnotes and normalizes nil slices for serialization.
func finalize(result *GenerateResult, cached bool) *GenerateResult {
	return &GenerateResult{
		Content:          TrimFootnotes(result.Content),
		Citations:        nonNilCitations(result.Citations),
		RelatedQuestions: nonNilStrings(result.RelatedQuestions),
		Cached:           cached,
	}
}

func nonNilCitations(citations []models.Citation) []models.Citation {
	if citations == nil {
		return []models.Citation{}
	}
	return citations
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
