package document

import (
	"regexp"
	"strings"
)

// 文本规范化使用的正则表达式
// 预编译以避免每次调用的编译开销
var (
	// 回车换行统一为\n
	crlfPattern = regexp.MustCompile(`\r\n?`)
	// 仅包含数字的行（页码残留）
	pageNumberPattern = regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*$`)
	// 包含两个及以上换行的空白串（段落分隔）
	paragraphPattern = regexp.MustCompile(`[ \t]*\n[ \t]*(?:\n[ \t]*)+`)
	// 其余空白串（包括单个换行）
	whitespacePattern = regexp.MustCompile(`\s+`)
	// 句末标点前的空格
	spaceBeforePunctPattern = regexp.MustCompile(` +([.!?])`)
	// 句末标点后直接跟随的正文字符（需要补一个空格）
	// 排除空白、其它句末标点、引号和收尾符号，避免破坏"...!"、"）."这类组合
	missingSpacePattern = regexp.MustCompile(`([.!?])([^\s.!?"'),;:\]])`)
)

// 段落分隔占位符，在空白折叠期间保护段落边界
const paragraphMarker = "\x00"

// Normalize 清洗并规范化从文档中提取的原始文本
// 处理步骤（顺序敏感）：
//  1. 统一换行符，移除页码行
//  2. 段落分隔（连续空行）保留为两个换行，其余空白折叠为单个空格
//  3. 句末标点前的空格移除，标点后保证恰好一个空格
//  4. 去除首尾空白
//
// 对任意输入都不会出错，空输入返回空字符串
// 满足幂等性：Normalize(Normalize(x)) == Normalize(x)
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := crlfPattern.ReplaceAllString(raw, "\n")

	// 移除独立的页码行
	text = pageNumberPattern.ReplaceAllString(text, "")

	// 先用占位符保护段落边界，再折叠其余空白
	text = paragraphPattern.ReplaceAllString(text, paragraphMarker)
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, paragraphMarker, "\n\n")

	// 规范句末标点周围的空格
	text = spaceBeforePunctPattern.ReplaceAllString(text, "$1")
	text = missingSpacePattern.ReplaceAllString(text, "$1 $2")

	return strings.TrimSpace(text)
}

// CleanQuery 清洗用户查询文本
// 查询与文档正文使用同一套规范化规则，保证检索时两侧的文本形态一致
func CleanQuery(query string) string {
	return Normalize(query)
}
