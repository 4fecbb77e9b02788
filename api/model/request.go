package model

import (
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidations 注册自定义的请求校验规则
func RegisterValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("docfile", validateDocFile)
		}
	})
}

// validateDocFile 校验上传文件的扩展名是否受支持
func validateDocFile(fl validator.FieldLevel) bool {
	header, ok := fl.Field().Interface().(multipart.FileHeader)
	if !ok {
		return false
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required,docfile"` // 文件对象
	Tags string                `form:"tags" binding:"omitempty"` // 文档标签，逗号分隔
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 结束时间
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 文档状态
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
	FileName  string     `form:"file_name" json:"file_name" binding:"omitempty"`   // 文件名模糊匹配
}

// QARequest 问答请求
type QARequest struct {
	Question string `json:"question" binding:"required"` // 问题内容
	FileID   string `json:"file_id" binding:"omitempty"` // 可选的文件ID，限定检索范围
}

// SearchRequest 相似度检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`        // 查询文本
	Limit int    `json:"limit" binding:"omitempty,min=1"` // 返回的分块数量
}
