package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsSentenceBoundary 测试句子边界判断
func TestIsSentenceBoundary(t *testing.T) {
	classifier := NewBoundaryClassifier(nil)

	t.Run("abbreviation is not a boundary", func(t *testing.T) {
		text := "Dr. Smith went home. He was tired."

		// "Dr"后面的句点属于缩写，不是句子结束
		drPos := strings.Index(text, ".")
		assert.Equal(t, 2, drPos)
		assert.False(t, classifier.IsSentenceBoundary(text, drPos))

		// "home"后面的句点是真正的句子结束
		homePos := strings.Index(text, "home.") + len("home")
		assert.True(t, classifier.IsSentenceBoundary(text, homePos))
	})

	t.Run("end of text is always a boundary", func(t *testing.T) {
		text := "no punctuation at all"
		assert.True(t, classifier.IsSentenceBoundary(text, len(text)-1))
		assert.True(t, classifier.IsSentenceBoundary(text, len(text)+10))
	})

	t.Run("no punctuation nearby", func(t *testing.T) {
		text := "a very long sentence without any ending nearby whatsoever"
		assert.False(t, classifier.IsSentenceBoundary(text, 5))
	})

	t.Run("uppercase lookahead", func(t *testing.T) {
		text := "First sentence. Second sentence follows."
		pos := strings.Index(text, ".")
		assert.True(t, classifier.IsSentenceBoundary(text, pos))
	})

	t.Run("custom abbreviations", func(t *testing.T) {
		custom := NewBoundaryClassifier([]string{"Ex."})
		text := "Ex. 5 shows the result. More text follows here."
		assert.False(t, custom.IsSentenceBoundary(text, 2))
	})
}

// TestFindCut 测试切分位置搜索
func TestFindCut(t *testing.T) {
	classifier := NewBoundaryClassifier(nil)

	t.Run("result always in range", func(t *testing.T) {
		texts := []string{
			"",
			"short",
			"First sentence here. Second sentence there. Third one too.",
			strings.Repeat("x", 3000),
			strings.Repeat("word. ", 500),
		}
		targets := []int{-10, 0, 5, 100, 1000, 10000}

		for _, text := range texts {
			for _, target := range targets {
				cut := classifier.FindCut(text, target, 150)
				assert.GreaterOrEqual(t, cut, 0)
				assert.LessOrEqual(t, cut, len(text))
			}
		}
	})

	t.Run("prefers sentence ending near target", func(t *testing.T) {
		// 句点在位置29，目标位置40在窗口内
		text := "This is the first sentence OK. And here the text keeps going on and on without stopping."
		cut := classifier.FindCut(text, 40, 150)
		assert.Equal(t, byte('.'), text[cut], "cut should land on the sentence ending punctuation")
	})

	t.Run("falls back to paragraph break", func(t *testing.T) {
		// 没有任何句末标点，但有段落分隔
		text := strings.Repeat("a", 95) + "\n\n" + strings.Repeat("b", 200)
		cut := classifier.FindCut(text, 100, 150)
		assert.Equal(t, 95, cut, "cut should land on the paragraph break")
	})

	t.Run("falls back to soft punctuation", func(t *testing.T) {
		text := strings.Repeat("a", 90) + "," + strings.Repeat("b", 200)
		cut := classifier.FindCut(text, 100, 150)
		assert.Equal(t, byte(','), text[cut])
	})

	t.Run("hard cut when nothing qualifies", func(t *testing.T) {
		text := strings.Repeat("a", 2000)
		cut := classifier.FindCut(text, 1000, 150)
		assert.Equal(t, 1000, cut)
	})

	t.Run("deterministic", func(t *testing.T) {
		text := strings.Repeat("Some sentence here. ", 100)
		first := classifier.FindCut(text, 777, 150)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, classifier.FindCut(text, 777, 150))
		}
	})
}
