package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpu导出的内容文件名中的页码
var contentPagePattern = regexp.MustCompile(`page_(\d+)`)

// PDFParser PDF文档解析器
// 基于pdfcpu的内容提取，按物理页返回文本
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并按页提取文本内容
func (p *PDFParser) Parse(filePath string) ([]Page, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, filePath)
	}

	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	// 提取每页内容到临时目录
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	var pages []Page
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		pages = append(pages, Page{
			Text:       text,
			PageNumber: pageNumberFromName(entry.Name()),
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no text content found in PDF", ErrExtractionFailed)
	}

	// 按页码排序，文件名的字典序在两位数页码时会乱
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	// 页码缺失时按出现顺序补齐
	for i := range pages {
		if pages[i].PageNumber <= 0 {
			pages[i].PageNumber = i + 1
		}
	}

	return pages, nil
}

// ParseReader 从Reader解析PDF内容
// pdfcpu的内容提取需要可寻址的文件，先落盘到临时文件再解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	tmpFile, err := os.CreateTemp("", "pdf_upload_*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to buffer pdf content: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %v", err)
	}

	return p.Parse(tmpFile.Name())
}

// pageNumberFromName 从pdfcpu导出的文件名解析页码，失败返回0
func pageNumberFromName(name string) int {
	m := contentPagePattern.FindStringSubmatch(name)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
