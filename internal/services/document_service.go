package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

const defaultMaxDocumentBytes = 32 << 20

// DocumentService stores uploaded project files on disk and their metadata in
// the database.
type DocumentService struct {
	db       *gorm.DB
	rootDir  string
	maxBytes int64
}

// DocumentOption customises the DocumentService.
type DocumentOption func(*DocumentService)

// WithDocumentMaxBytes caps the accepted upload size.
func WithDocumentMaxBytes(n int64) DocumentOption {
	return func(s *DocumentService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewDocumentService constructs a DocumentService rooted at dir.
func NewDocumentService(db *gorm.DB, dir string, opts ...DocumentOption) (*DocumentService, error) {
	if db == nil {
		return nil, errors.New("document service: db is required")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("document service: upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("document service: create upload directory: %w", err)
	}

	svc := &DocumentService{
		db:       db,
		rootDir:  dir,
		maxBytes: defaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UploadInput describes an incoming file.
type UploadInput struct {
	ProjectID   string
	UploaderID  string
	FileName    string
	ContentType string
	Content     io.Reader
}

// Upload writes the file under the project's directory and records its
// metadata. The stored name is a generated id; the original name survives
// only in the metadata row.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*models.Document, error) {
	ctx = ensureContext(ctx)

	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return nil, errors.New("document service: project id is required")
	}
	fileName := sanitizeFileName(input.FileName)
	if fileName == "" {
		return nil, apperrors.NewBadRequest("file name is required")
	}
	if input.Content == nil {
		return nil, errors.New("document service: content is required")
	}

	projectDir := filepath.Join(s.rootDir, projectID)
	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return nil, fmt.Errorf("document service: create project directory: %w", err)
	}

	storageName := uuid.NewString() + filepath.Ext(fileName)
	storagePath := filepath.Join(projectDir, storageName)

	out, err := os.OpenFile(storagePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("document service: create file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(input.Content, s.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = apperrors.NewBadRequest("file exceeds the maximum upload size")
	}
	if err != nil {
		_ = os.Remove(storagePath)
		return nil, err
	}

	doc := models.Document{
		ProjectID:   projectID,
		UploaderID:  strings.TrimSpace(input.UploaderID),
		FileName:    fileName,
		ContentType: strings.TrimSpace(input.ContentType),
		SizeBytes:   written,
		StoragePath: storagePath,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		_ = os.Remove(storagePath)
		return nil, fmt.Errorf("document service: create document: %w", err)
	}
	return &doc, nil
}

// ListForProject returns document metadata for a project, newest first.
func (s *DocumentService) ListForProject(ctx context.Context, projectID string) ([]models.Document, error) {
	ctx = ensureContext(ctx)

	var docs []models.Document
	err := s.db.WithContext(ctx).
		Where("project_id = ?", strings.TrimSpace(projectID)).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("document service: list documents: %w", err)
	}
	return docs, nil
}

// Open returns the document metadata and a reader over its bytes. The caller
// closes the reader.
func (s *DocumentService) Open(ctx context.Context, documentID string) (*models.Document, io.ReadCloser, error) {
	ctx = ensureContext(ctx)

	doc, err := s.get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("document service: open file: %w", err)
	}
	return doc, file, nil
}

// Delete removes the metadata row and the file on disk.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	ctx = ensureContext(ctx)

	doc, err := s.get(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", doc.ID).Error; err != nil {
		return fmt.Errorf("document service: delete document: %w", err)
	}
	if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("document service: remove file: %w", err)
	}
	return nil
}

func (s *DocumentService) get(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Take(&doc, "id = ?", strings.TrimSpace(documentID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("document service: load document: %w", err)
	}
	return &doc, nil
}

// sanitizeFileName strips any path components from a client-supplied name.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
