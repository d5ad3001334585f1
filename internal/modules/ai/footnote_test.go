package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimFootnotes(t *testing.T) {
	t.Run("removes footnote list after separator", func(t *testing.T) {
		content := "Body text\n\n---\n\n[^1] Catechism of the Catholic Church, 123"
		assert.Equal(t, "Body text", TrimFootnotes(content))
	})

	t.Run("removes footnotes without separator", func(t *testing.T) {
		content := "Body text\n\n[^1] Some reference"
		assert.Equal(t, "Body text", TrimFootnotes(content))
	})

	t.Run("cuts at last separator before footnotes", func(t *testing.T) {
		content := "Intro\n---\nMiddle\n\n---\n\n[^1] Ref\n[^2] Ref"
		assert.Equal(t, "Intro\n---\nMiddle", TrimFootnotes(content))
	})

	t.Run("passes content without footnotes through", func(t *testing.T) {
		content := "天主是爱。\n\n---\n\n结语段落。"
		assert.Equal(t, content, TrimFootnotes(content))
	})

	t.Run("keeps inline footnote references", func(t *testing.T) {
		// [^1] mid-line is a reference, not a definition.
		content := "这是引用[^1]的内容。"
		assert.Equal(t, content, TrimFootnotes(content))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", TrimFootnotes(""))
	})

	t.Run("idempotent", func(t *testing.T) {
		content := "Body text\n\n---\n\n[^1] Reference entry"
		once := TrimFootnotes(content)
		assert.Equal(t, once, TrimFootnotes(once))
	})
}

func TestStreamTrimmer(t *testing.T) {
	t.Run("forwards normal chunks unchanged", func(t *testing.T) {
		tr := &streamTrimmer{}
		assert.Equal(t, "太初", tr.next("太初"))
		assert.Equal(t, "有道。", tr.next("有道。"))
	})

	t.Run("cuts chunk containing footnote start", func(t *testing.T) {
		tr := &streamTrimmer{}
		assert.Equal(t, "结尾。", tr.next("结尾。\n---\n\n[^1] 参考"))
		assert.Equal(t, "", tr.next("后续脚注内容"))
	})

	t.Run("cuts before footnote when no separator", func(t *testing.T) {
		tr := &streamTrimmer{}
		assert.Equal(t, "结尾。", tr.next("结尾。\n[^1] 参考"))
	})

	t.Run("drops everything after footnotes started", func(t *testing.T) {
		tr := &streamTrimmer{}
		tr.next("正文\n\n---\n\n[^1] 一")
		assert.Equal(t, "", tr.next("[^2] 二"))
		assert.Equal(t, "", tr.next("普通文本"))
	})

	t.Run("matches accumulated trim for chunk-aligned footnotes", func(t *testing.T) {
		chunks := []string{"第一段。", "第二段。", "\n\n---\n\n[^1] 参考一", "[^2] 参考二"}

		tr := &streamTrimmer{}
		streamed := ""
		full := ""
		for _, c := range chunks {
			streamed += tr.next(c)
			full += c
		}

		// The stream variant keeps trailing whitespace that the
		// buffered one trims; modulo that, the output is identical.
		assert.Equal(t, TrimFootnotes(full), strings.TrimSpace(streamed))
	})
}
