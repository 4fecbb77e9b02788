package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// 解析阶段的错误定义
var (
	// ErrSourceNotFound 输入文档路径不存在
	ErrSourceNotFound = errors.New("source document not found")
	// ErrExtractionFailed 文本提取失败（文档损坏或格式不支持）
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrUnsupportedType 不支持的文档类型
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Page 文档中一页的原始文本
// PDF按物理页划分，其它格式整个文档视为一页
type Page struct {
	Text       string // 该页的原始文本内容
	PageNumber int    // 页码，从1开始
}

// Parser 文档解析器接口
// 负责将不同格式的文档解析为按页组织的纯文本
type Parser interface {
	// Parse 解析文档，返回按页组织的文本
	Parse(filePath string) ([]Page, error)

	// ParseReader 从Reader解析文档
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) ([]Page, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch detectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}
