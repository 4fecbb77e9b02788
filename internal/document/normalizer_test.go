package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize 测试文本规范化功能
func TestNormalize(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", Normalize(""))
		assert.Equal(t, "", Normalize("   \n\t  "))
	})

	t.Run("collapse whitespace", func(t *testing.T) {
		got := Normalize("hello    world\tfoo\nbar")
		assert.Equal(t, "hello world foo bar", got)
	})

	t.Run("preserve paragraph breaks", func(t *testing.T) {
		got := Normalize("first paragraph\n\nsecond paragraph")
		assert.Equal(t, "first paragraph\n\nsecond paragraph", got)

		// 多个空行折叠为一个段落分隔
		got = Normalize("first\n\n\n\nsecond")
		assert.Equal(t, "first\n\nsecond", got)
	})

	t.Run("strip page number lines", func(t *testing.T) {
		got := Normalize("some content here\n42\nmore content")
		assert.NotContains(t, got, "42")
		assert.Contains(t, got, "some content here")
		assert.Contains(t, got, "more content")
	})

	t.Run("keep inline numbers", func(t *testing.T) {
		got := Normalize("chapter 42 begins here")
		assert.Contains(t, got, "42")
	})

	t.Run("punctuation spacing", func(t *testing.T) {
		// 标点前的空格移除
		got := Normalize("hello .world")
		assert.Equal(t, "hello. world", got)

		// 标点后保证一个空格
		got = Normalize("first.second")
		assert.Equal(t, "first. second", got)

		// 已经规范的文本保持不变
		got = Normalize("first. Second sentence.")
		assert.Equal(t, "first. Second sentence.", got)
	})

	t.Run("crlf input", func(t *testing.T) {
		got := Normalize("line one\r\n\r\nline two")
		assert.Equal(t, "line one\n\nline two", got)
	})

	t.Run("no double spaces in output", func(t *testing.T) {
		got := Normalize("a  lot   of\t\tspaces .  and dots")
		assert.NotContains(t, got, "  ")
	})
}

// TestNormalizeIdempotent 验证规范化的幂等性
// 对任意输入，规范化两次和一次的结果必须相同
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"simple text",
		"text  with\n\nparagraphs\nand   spaces",
		"Dr. Smith went home. He was tired.",
		"numbers 1.5 and 2.7 stay",
		"page content\n123\nnext page content",
		strings.Repeat("word ", 500),
		"trailing spaces   \n\n  and blanks \r\n 42 \n done.",
		"weird!!!punctuation?maybe.yes",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize should be idempotent for %q", input)
	}
}
