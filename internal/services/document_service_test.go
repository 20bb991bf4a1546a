package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probuildhq/probuild/internal/database/testutil"
	"github.com/probuildhq/probuild/internal/models"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

func TestDocumentServiceUploadAndOpen(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := &models.User{Email: "owner@example.com", Password: "hashed"}
	require.NoError(t, db.Create(owner).Error)
	project := &models.Project{Name: "Bridge Repair", OwnerID: owner.ID}
	require.NoError(t, db.Create(project).Error)

	svc, err := NewDocumentService(db, t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	doc, err := svc.Upload(ctx, UploadInput{
		ProjectID:   project.ID,
		UploaderID:  owner.ID,
		FileName:    "../../site-plan.pdf",
		ContentType: "application/pdf",
		Content:     strings.NewReader("blueprint bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "site-plan.pdf", doc.FileName)
	require.EqualValues(t, len("blueprint bytes"), doc.SizeBytes)

	loaded, reader, err := svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	defer reader.Close()
	require.Equal(t, doc.ID, loaded.ID)

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "blueprint bytes", string(content))

	docs, err := svc.ListForProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDocumentServiceUploadTooLarge(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db, t.TempDir(), WithDocumentMaxBytes(8))
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), UploadInput{
		ProjectID: "proj-1",
		FileName:  "huge.bin",
		Content:   strings.NewReader("far too many bytes"),
	})
	require.Error(t, err)
}

func TestDocumentServiceDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewDocumentService(db, t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	doc, err := svc.Upload(ctx, UploadInput{
		ProjectID: "proj-1",
		FileName:  "permit.pdf",
		Content:   strings.NewReader("permit"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	require.ErrorIs(t, svc.Delete(ctx, doc.ID), apperrors.ErrNotFound)

	_, _, err = svc.Open(ctx, doc.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
