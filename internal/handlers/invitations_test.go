package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/database/testutil"
	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/notifications"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/response"
)

type invitationHandlerFixture struct {
	handler *InvitationHandler
	db      *gorm.DB
	owner   *models.User
	project *models.Project
	svc     *services.InvitationService
}

func newInvitationHandlerFixture(t *testing.T) *invitationHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := &models.User{Email: "owner@example.com", Password: "hashed"}
	require.NoError(t, db.Create(owner).Error)

	projects, err := services.NewProjectService(db)
	require.NoError(t, err)

	project, err := projects.Create(context.Background(), services.CreateProjectInput{
		Name:    "Lakeside Cabins",
		OwnerID: owner.ID,
	})
	require.NoError(t, err)

	prefs, err := services.NewPreferencesService(db)
	require.NoError(t, err)
	notifier, err := services.NewNotificationService(db, notifications.NewHub(), prefs)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(db, nil, notifier)
	require.NoError(t, err)

	return &invitationHandlerFixture{
		handler: NewInvitationHandler(invitations, projects),
		db:      db,
		owner:   owner,
		project: project,
		svc:     invitations,
	}
}

func (f *invitationHandlerFixture) postJSON(t *testing.T, userID string, params gin.Params, body any, fn gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	if userID != "" {
		c.Set(middleware.CtxUserIDKey, userID)
	}
	fn(c)
	return recorder
}

func TestInvitationHandlerCreateRequiresManageRights(t *testing.T) {
	f := newInvitationHandlerFixture(t)

	outsider := &models.User{Email: "outsider@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(outsider).Error)

	params := gin.Params{{Key: "id", Value: f.project.ID}}
	body := gin.H{"email": "crew@example.com", "role": "contractor"}

	recorder := f.postJSON(t, outsider.ID, params, body, f.handler.Create)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = f.postJSON(t, f.owner.ID, params, body, f.handler.Create)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)
}

func TestInvitationHandlerAcceptFlow(t *testing.T) {
	f := newInvitationHandlerFixture(t)
	ctx := context.Background()

	invitee := &models.User{Email: "crew@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(invitee).Error)

	result, err := f.svc.Create(ctx, services.CreateInvitationInput{
		ProjectID: f.project.ID,
		Email:     invitee.Email,
		Role:      models.RoleContractor,
		InvitedBy: f.owner.ID,
	})
	require.NoError(t, err)

	params := gin.Params{{Key: "token", Value: result.Token}}

	recorder := f.postJSON(t, invitee.ID, params, gin.H{}, f.handler.Accept)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Retrying reports the same outcome.
	recorder = f.postJSON(t, invitee.ID, params, gin.H{}, f.handler.Accept)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Declining a resolved invitation is a conflict.
	recorder = f.postJSON(t, "", params, gin.H{}, f.handler.Decline)
	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestInvitationHandlerUnknownToken(t *testing.T) {
	f := newInvitationHandlerFixture(t)

	params := gin.Params{{Key: "token", Value: "bogus"}}
	recorder := f.postJSON(t, "", params, gin.H{}, f.handler.Decline)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}
