package document

import (
	"regexp"
	"strings"
	"unicode"
)

// 句末标点模式：一个或多个.!?，可跟引号，后接空白
var sentenceEndingPattern = regexp.MustCompile(`[.!?]+["']*\s+`)

// DefaultAbbreviations 返回默认的缩写词集合（葡萄牙语+英语）
// 这些缩写中的句点不应被视为句子结束
func DefaultAbbreviations() []string {
	return []string{
		"Dr.", "Sr.", "Sra.", "Prof.", "etc.", "vs.", "i.e.", "e.g.",
		"pág.", "p.", "cap.", "vol.", "ed.", "nº", "n°", "art.",
		"inc.", "corp.", "co.", "ltd.", "llc.",
	}
}

// BoundaryClassifier 句子边界分类器
// 判断文本中的某个偏移位置是否为合法的句子边界
// 这是一个纯启发式实现：没有真正的NLP分句，缩写表和大写前瞻
// 都是近似规则。分类器有意保持宽松（默认返回true），
// 误报由下游的边界搜索评分消化，比漏报切碎句子的代价更低
type BoundaryClassifier struct {
	abbreviations []string
}

// NewBoundaryClassifier 创建句子边界分类器
// abbreviations为空时使用默认缩写表
func NewBoundaryClassifier(abbreviations []string) *BoundaryClassifier {
	if len(abbreviations) == 0 {
		abbreviations = DefaultAbbreviations()
	}
	return &BoundaryClassifier{abbreviations: abbreviations}
}

// IsSentenceBoundary 判断offset处是否为句子边界
func (c *BoundaryClassifier) IsSentenceBoundary(text string, offset int) bool {
	if offset >= len(text)-1 {
		return true
	}

	// 后续10个字符内必须出现句末标点模式
	lookahead := text[offset:min(offset+10, len(text))]
	if !sentenceEndingPattern.MatchString(lookahead) {
		return false
	}

	// 缩写例外：offset处的标点属于某个缩写词时不算句子结束
	// 只检查前面30个字符的窗口，缩写必须正好结束在offset处，
	// 否则"Dr. Smith went home."里home后面的句点也会被误杀
	before := text[max(0, offset-30) : offset+1]
	for _, abbr := range c.abbreviations {
		if strings.HasSuffix(before, abbr) {
			return false
		}
	}

	// 标点后紧跟大写字母是强烈的新句信号
	if offset+1 < len(text) {
		next := rune(text[offset+1])
		if unicode.IsUpper(next) && unicode.IsLetter(next) {
			return true
		}
	}

	// 标点后是空白再跟大写字母
	if offset+2 < len(text) {
		if unicode.IsSpace(rune(text[offset+1])) && unicode.IsUpper(rune(text[offset+2])) {
			return true
		}
	}

	return true
}

// FindCut 在target附近的窗口内搜索最佳切分位置
// 评分规则：距离越近分数越低（越好），50字符内×0.5，100字符内×0.8，
// 位置本身是句末标点再×0.7。找不到合格的句子边界时依次退化为：
// 最近的段落分隔（距离≤100）、最近的软标点,;:（距离≤100）、硬切分target
// 返回值保证落在[0, len(text)]内，相同输入结果确定（平分时取靠左者）
func (c *BoundaryClassifier) FindCut(text string, target int, window int) int {
	if window <= 0 {
		window = DefaultBoundaryWindow
	}
	if target < 0 {
		target = 0
	}
	if target > len(text) {
		target = len(text)
	}

	searchStart := max(0, target-window)
	searchEnd := min(len(text), target+window)

	bestCut := target
	bestScore := -1.0

	for i := searchStart; i < searchEnd; i++ {
		if !c.IsSentenceBoundary(text, i) {
			continue
		}

		distance := abs(i - target)
		score := float64(distance)
		if distance <= 50 {
			score *= 0.5
		} else if distance <= 100 {
			score *= 0.8
		}
		if isSentencePunct(text[i]) {
			score *= 0.7
		}

		if bestScore < 0 || score < bestScore {
			bestScore = score
			bestCut = i
		}
	}

	if bestCut != target {
		return bestCut
	}

	// 退化1：最近的段落分隔
	bestDistance := -1
	for i := searchStart; i < searchEnd-1; i++ {
		if text[i] != '\n' || text[i+1] != '\n' {
			continue
		}
		distance := abs(i - target)
		if distance > 100 {
			continue
		}
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestCut = i
		}
	}
	if bestCut != target {
		return bestCut
	}

	// 退化2：最近的软标点
	for i := searchStart; i < searchEnd; i++ {
		ch := text[i]
		if ch != ',' && ch != ';' && ch != ':' {
			continue
		}
		distance := abs(i - target)
		if distance > 100 {
			continue
		}
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestCut = i
		}
	}

	// 退化3：硬切分
	return bestCut
}

// isSentencePunct 判断字节是否为句末标点
func isSentencePunct(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
