package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// DocumentHandler exposes project file upload and download endpoints.
type DocumentHandler struct {
	documents *services.DocumentService
	projects  *services.ProjectService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(documents *services.DocumentService, projects *services.ProjectService) *DocumentHandler {
	return &DocumentHandler{documents: documents, projects: projects}
}

// Upload stores a multipart file under the project. Requires membership.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	role, err := h.projects.MemberRole(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errors.NewBadRequest("a file field is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, errors.NewBadRequest("unable to read uploaded file"))
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(requestContext(c), services.UploadInput{
		ProjectID:   projectID,
		UploaderID:  userID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, doc)
}

// List returns document metadata for a project. Requires membership.
func (h *DocumentHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	role, err := h.projects.MemberRole(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	docs, err := h.documents.ListForProject(requestContext(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, docs)
}

// Download streams the document bytes. Requires membership of the owning project.
func (h *DocumentHandler) Download(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	doc, reader, err := h.documents.Open(requestContext(c), c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close()

	role, err := h.projects.MemberRole(requestContext(c), doc.ProjectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, reader, nil)
}

// Delete removes a document. Requires manage rights on the owning project.
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)
	doc, reader, err := h.documents.Open(ctx, c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	reader.Close()

	canManage, err := h.projects.CanManage(ctx, doc.ProjectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canManage && doc.UploaderID != userID {
		response.Error(c, errors.ErrForbidden)
		return
	}

	if err := h.documents.Delete(ctx, doc.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
