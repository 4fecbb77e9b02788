package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/smart-rag/api/handler"
	"github.com/fyerfyer/smart-rag/internal/llm"
	"github.com/fyerfyer/smart-rag/internal/models"
	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeDocService DocumentManager的测试替身
type fakeDocService struct {
	docs map[string]*models.Document
}

func newFakeDocService() *fakeDocService {
	return &fakeDocService{docs: make(map[string]*models.Document)}
}

func (f *fakeDocService) UploadDocument(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	id := fmt.Sprintf("doc-%d", len(f.docs)+1)
	doc := &models.Document{
		ID:           id,
		FileName:     filename,
		Status:       models.DocStatusCompleted,
		CurrentStage: models.StageCompleted,
		Progress:     100,
		SegmentCount: 3,
		UploadedAt:   time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.docs[id] = doc
	return doc, nil
}

func (f *fakeDocService) GetDocument(id string) (*models.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocService) ListDocuments(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	docs := make([]*models.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return docs, int64(len(docs)), nil
}

func (f *fakeDocService) DeleteDocument(ctx context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return models.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocService) GetSegments(id string) ([]*models.DocumentSegment, error) {
	if _, ok := f.docs[id]; !ok {
		return nil, models.ErrDocumentNotFound
	}
	return []*models.DocumentSegment{
		{DocumentID: id, SegmentID: id + "-0", Position: 0, Text: "segment text"},
	}, nil
}

func (f *fakeDocService) Stats(ctx context.Context) (*services.SystemStats, error) {
	return &services.SystemStats{
		DocumentCount: int64(len(f.docs)),
		VectorCount:   3 * len(f.docs),
		Dimension:     1536,
	}, nil
}

// fakeQAService QAProvider的测试替身
type fakeQAService struct {
	result *services.AnswerResult
	err    error
}

func (f *fakeQAService) Answer(ctx context.Context, query string) (*services.AnswerResult, error) {
	return f.result, f.err
}

func (f *fakeQAService) AnswerWithFile(ctx context.Context, query string, fileID string) (*services.AnswerResult, error) {
	return f.result, f.err
}

func (f *fakeQAService) Search(ctx context.Context, query string, limit int) ([]vectordb.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []vectordb.SearchResult{
		{
			Document: vectordb.Document{ID: "chunk-1", FileID: "doc-1", FileName: "guide.pdf", Text: "chunk text"},
			Score:    0.92,
		},
	}, nil
}

func setupTestRouter(qa *fakeQAService) (*gin.Engine, *fakeDocService) {
	docService := newFakeDocService()
	logger := logrus.New()

	router := SetupRouter(
		handler.NewDocumentHandler(docService, logger),
		handler.NewQAHandler(qa, logger),
		nil,
		logger,
	)
	return router, docService
}

// uploadFile 构造multipart上传请求
func uploadFile(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeResponse 解析响应体
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDocumentEndpoints(t *testing.T) {
	router, _ := setupTestRouter(&fakeQAService{})

	t.Run("upload", func(t *testing.T) {
		w := uploadFile(t, router, "notes.txt", "some text content")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "doc-1", data["file_id"])
		assert.Equal(t, "completed", data["status"])
	})

	t.Run("upload unsupported type", func(t *testing.T) {
		w := uploadFile(t, router, "image.png", "not a document")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upload without file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "completed", data["status"])
		assert.Equal(t, float64(100), data["progress"])
	})

	t.Run("status of missing document", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/no-such-doc/status", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents?page=1&page_size=10", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, float64(1), data["total"])
	})

	t.Run("segments", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/segments", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		// 删除后查询返回404
		req = httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/status", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestQAEndpoint(t *testing.T) {
	t.Run("answered", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeQAService{
			result: &services.AnswerResult{
				Outcome:   services.OutcomeAnswered,
				Answer:    "the answer",
				Threshold: 0.45,
				Scores:    []float32{0.9, 0.3},
				Sources: []llm.SourceReference{
					{ID: "chunk-1", FileID: "doc-1", FileName: "guide.pdf", Content: "chunk text", Score: 0.9},
				},
			},
		})

		body := bytes.NewBufferString(`{"question":"what is this?"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/qa", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "answered", data["outcome"])
		assert.Equal(t, "the answer", data["answer"])
		sources := data["sources"].([]interface{})
		require.Len(t, sources, 1)
	})

	t.Run("insufficient evidence", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeQAService{
			result: &services.AnswerResult{
				Outcome:   services.OutcomeInsufficientEvidence,
				Threshold: 0.45,
				Scores:    []float32{0.2},
			},
		})

		body := bytes.NewBufferString(`{"question":"unrelated question"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/qa", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "insufficient_evidence", data["outcome"])
		assert.Empty(t, data["answer"])
	})

	t.Run("missing question", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeQAService{})

		body := bytes.NewBufferString(`{}`)
		req := httptest.NewRequest(http.MethodPost, "/api/qa", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty query error mapped to 400", func(t *testing.T) {
		router, _ := setupTestRouter(&fakeQAService{err: services.ErrEmptyQuery})

		body := bytes.NewBufferString(`{"question":"   "}`)
		req := httptest.NewRequest(http.MethodPost, "/api/qa", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := setupTestRouter(&fakeQAService{})

	body := bytes.NewBufferString(`{"query":"vector database","limit":5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp["data"].(map[string]interface{})
	matches := data["matches"].([]interface{})
	require.Len(t, matches, 1)

	match := matches[0].(map[string]interface{})
	assert.Equal(t, "chunk-1", match["id"])
	assert.InDelta(t, 0.92, match["score"].(float64), 0.001)
}

func TestStatsAndHealth(t *testing.T) {
	router, _ := setupTestRouter(&fakeQAService{})

	t.Run("stats", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, float64(1536), data["dimension"])
	})

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("trace id propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Trace-ID", "trace-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))
	})
}
