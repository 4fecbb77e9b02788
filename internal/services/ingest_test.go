package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/smart-rag/internal/document"
	"github.com/fyerfyer/smart-rag/internal/embedding"
	"github.com/fyerfyer/smart-rag/internal/models"
	"github.com/fyerfyer/smart-rag/internal/repository"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
	"github.com/fyerfyer/smart-rag/pkg/storage"
)

// fakeStorage 基于临时目录的文件存储
type fakeStorage struct {
	dir     string
	counter int
	files   map[string]storage.FileInfo
}

func newFakeStorage(t *testing.T) *fakeStorage {
	return &fakeStorage{
		dir:   t.TempDir(),
		files: make(map[string]storage.FileInfo),
	}
}

func (s *fakeStorage) Save(reader io.Reader, filename string) (storage.FileInfo, error) {
	s.counter++
	id := fmt.Sprintf("doc-%d", s.counter)
	path := filepath.Join(s.dir, id+filepath.Ext(filename))

	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.FileInfo{}, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return storage.FileInfo{}, err
	}

	info := storage.FileInfo{
		ID:   id,
		Name: filename,
		Size: int64(len(data)),
		Path: path,
	}
	s.files[id] = info
	return info, nil
}

func (s *fakeStorage) Get(id string) (io.ReadCloser, error) {
	info, ok := s.files[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(info.Path)
}

func (s *fakeStorage) Delete(id string) error {
	info, ok := s.files[id]
	if !ok {
		return os.ErrNotExist
	}
	delete(s.files, id)
	return os.Remove(info.Path)
}

func (s *fakeStorage) List() ([]storage.FileInfo, error) {
	infos := make([]storage.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *fakeStorage) Exists(id string) (bool, error) {
	_, ok := s.files[id]
	return ok, nil
}

// setupDocumentService 组装使用内存后端的入库服务
func setupDocumentService(t *testing.T) (*DocumentService, *fakeStorage, vectordb.Repository, repository.DocumentRepository) {
	dbName := fmt.Sprintf("file:ingest_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.DocumentSegment{}))

	docRepo := repository.NewDocumentRepository(db)

	vectorRepo, err := vectordb.NewMemoryRepository(vectordb.Config{Dimension: 3})
	require.NoError(t, err)
	t.Cleanup(func() { vectorRepo.Close() })

	splitter, err := document.NewSplitter(document.SplitterConfig{
		Policy:         document.SplitSmart,
		ChunkSize:      80,
		ChunkOverlap:   10,
		MinChunkSize:   10,
		BoundaryWindow: 30,
	})
	require.NoError(t, err)

	batcher := embedding.NewBatchProcessor(&fakeEmbedder{vector: []float32{1, 0, 0}}, 4, 2)
	store := newFakeStorage(t)

	svc := NewDocumentService(store, docRepo, vectorRepo, batcher, splitter)
	return svc, store, vectorRepo, docRepo
}

const ingestText = `Vector databases store embeddings for similarity search. They return the nearest neighbors of a query vector.

Retrieval augmented generation combines search with language models. The retrieved chunks ground the generated answer in real documents.

Chunking splits long documents into pieces that fit the embedding model. Overlapping chunks preserve context across boundaries.`

func TestDocumentService_UploadAndProcess(t *testing.T) {
	svc, _, vectorRepo, docRepo := setupDocumentService(t)
	ctx := context.Background()

	doc, err := svc.UploadDocument(ctx, strings.NewReader(ingestText), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, models.StageCompleted, doc.CurrentStage)
	assert.Equal(t, 100, doc.Progress)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, string(document.SplitSmart), doc.SplitMethod)
	require.Greater(t, doc.SegmentCount, 0)

	t.Run("vectors stored", func(t *testing.T) {
		count, err := vectorRepo.Count()
		require.NoError(t, err)
		assert.Equal(t, doc.SegmentCount, count)
	})

	t.Run("segments recorded in order", func(t *testing.T) {
		segments, err := docRepo.GetSegments(doc.ID)
		require.NoError(t, err)
		require.Len(t, segments, doc.SegmentCount)

		for i, seg := range segments {
			assert.Equal(t, i, seg.Position)
			assert.NotEmpty(t, seg.Text)
			assert.NotEmpty(t, seg.VectorID)
			assert.Equal(t, string(document.SplitSmart), seg.Method)

			// 分块的向量可以按VectorID找回
			stored, err := vectorRepo.Get(seg.VectorID)
			require.NoError(t, err)
			assert.Equal(t, seg.Text, stored.Text)
			assert.Equal(t, doc.ID, stored.FileID)
		}
	})

	t.Run("stats updated", func(t *testing.T) {
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.DocumentCount)
		assert.Equal(t, doc.SegmentCount, stats.VectorCount)
		require.NotNil(t, stats.LastIngest)
		assert.Equal(t, doc.ID, stats.LastIngest.DocumentID)
		assert.Equal(t, doc.SegmentCount, stats.LastIngest.ChunkCount)
		assert.Equal(t, doc.SegmentCount, stats.LastIngest.ChunkStats.TotalChunks)
	})
}

func TestDocumentService_UnsupportedType(t *testing.T) {
	svc, _, _, docRepo := setupDocumentService(t)

	doc, err := svc.UploadDocument(context.Background(), strings.NewReader("data"), "image.png")
	require.Error(t, err)
	require.NotNil(t, doc)

	saved, err := docRepo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, saved.Status)
	assert.Contains(t, saved.Error, "unsupported")
}

func TestDocumentService_EmptyDocument(t *testing.T) {
	svc, _, vectorRepo, _ := setupDocumentService(t)

	doc, err := svc.UploadDocument(context.Background(), strings.NewReader("   \n\n  "), "empty.txt")
	require.NoError(t, err)

	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, 0, doc.SegmentCount)

	count, err := vectorRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDocumentService_Delete(t *testing.T) {
	svc, store, vectorRepo, docRepo := setupDocumentService(t)
	ctx := context.Background()

	doc, err := svc.UploadDocument(ctx, strings.NewReader(ingestText), "notes.txt")
	require.NoError(t, err)
	require.Greater(t, doc.SegmentCount, 0)

	require.NoError(t, svc.DeleteDocument(ctx, doc.ID))

	_, err = docRepo.GetByID(doc.ID)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	count, err := vectorRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	exists, err := store.Exists(doc.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	t.Run("missing document", func(t *testing.T) {
		err := svc.DeleteDocument(ctx, "no-such-doc")
		assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	})
}

func TestDocumentService_ListAndGet(t *testing.T) {
	svc, _, _, _ := setupDocumentService(t)
	ctx := context.Background()

	doc, err := svc.UploadDocument(ctx, strings.NewReader(ingestText), "notes.txt")
	require.NoError(t, err)

	got, err := svc.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.FileName)
	assert.Equal(t, "txt", got.FileType)

	docs, total, err := svc.ListDocuments(0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)

	segments, err := svc.GetSegments(doc.ID)
	require.NoError(t, err)
	assert.Len(t, segments, doc.SegmentCount)
}
