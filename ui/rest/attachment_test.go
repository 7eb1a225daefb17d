package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	pkgError "github.com/AzielCF/az-wrap/pkg/error"
	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/AzielCF/az-wrap/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPreview struct {
	mock.Mock
}

func (m *mockPreview) Layout(ctx context.Context, request domainAttachment.LayoutRequest) (domainAttachment.LayoutResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(domainAttachment.LayoutResponse), args.Error(1)
}

func (m *mockPreview) Render(ctx context.Context, request domainAttachment.RenderRequest) (domainAttachment.RenderResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(domainAttachment.RenderResponse), args.Error(1)
}

func (m *mockPreview) RenderAlbum(ctx context.Context, request domainAttachment.AlbumRenderRequest) (domainAttachment.RenderResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(domainAttachment.RenderResponse), args.Error(1)
}

func (m *mockPreview) RenderReply(ctx context.Context, request domainAttachment.ReplyRenderRequest) (domainAttachment.RenderResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(domainAttachment.RenderResponse), args.Error(1)
}

func (m *mockPreview) GetRender(ctx context.Context, renderID string) (domainAttachment.RenderResponse, error) {
	args := m.Called(ctx, renderID)
	return args.Get(0).(domainAttachment.RenderResponse), args.Error(1)
}

func (m *mockPreview) Click(ctx context.Context, renderID string) (domainAttachment.RenderResponse, error) {
	args := m.Called(ctx, renderID)
	return args.Get(0).(domainAttachment.RenderResponse), args.Error(1)
}

func (m *mockPreview) Revoke(ctx context.Context, renderID string) error {
	return m.Called(ctx, renderID).Error(0)
}

func (m *mockPreview) Scroll(ctx context.Context, request domainAttachment.ScrollRequest) (domainAttachment.PreviewStats, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(domainAttachment.PreviewStats), args.Error(1)
}

func (m *mockPreview) Stats(ctx context.Context) (domainAttachment.PreviewStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domainAttachment.PreviewStats), args.Error(1)
}

func newAttachmentApp(service domainAttachment.IPreviewUsecase) *fiber.App {
	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestAttachment(app, service)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, utils.ResponseData) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out utils.ResponseData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAttachment_Layout(t *testing.T) {
	svc := &mockPreview{}
	svc.On("Layout", mock.Anything, domainAttachment.LayoutRequest{
		Sizes:    []layouter.Size{{W: 1, H: 1}, {W: 2, H: 1}},
		MaxWidth: 300,
	}).Return(domainAttachment.LayoutResponse{Width: 300, Height: 120, Rows: 1}, nil)

	status, body := doJSON(t, newAttachmentApp(svc), http.MethodPost, "/attachments/layout",
		`{"sizes":[{"w":1,"h":1},{"w":2,"h":1}],"max_width":300}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", body.Code)
	svc.AssertExpectations(t)
}

func TestAttachment_RenderValidationError(t *testing.T) {
	svc := &mockPreview{}
	svc.On("Render", mock.Anything, mock.Anything).
		Return(domainAttachment.RenderResponse{}, pkgError.ValidationError("descriptor: (id: cannot be blank.)."))

	status, body := doJSON(t, newAttachmentApp(svc), http.MethodPost, "/attachments/render", `{"descriptor":{"kind":"photo"}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestAttachment_RenderBadJSON(t *testing.T) {
	status, body := doJSON(t, newAttachmentApp(&mockPreview{}), http.MethodPost, "/attachments/render", `{"descriptor":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body.Code)
}

func TestAttachment_AlbumTakesGroupFromPath(t *testing.T) {
	svc := &mockPreview{}
	svc.On("RenderAlbum", mock.Anything, domainAttachment.AlbumRenderRequest{GroupID: "g1", Lazy: true}).
		Return(domainAttachment.RenderResponse{RenderID: "r1"}, nil)

	status, _ := doJSON(t, newAttachmentApp(svc), http.MethodPost, "/attachments/albums/g1", `{"lazy":true}`)
	assert.Equal(t, http.StatusOK, status)
	svc.AssertExpectations(t)
}

func TestAttachment_RevokeUnknownRender(t *testing.T) {
	svc := &mockPreview{}
	svc.On("Revoke", mock.Anything, "nope").Return(pkgError.NotFoundError("render nope not found"))

	status, body := doJSON(t, newAttachmentApp(svc), http.MethodDelete, "/attachments/renders/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "render nope not found", body.Message)
}

func TestAttachment_Stats(t *testing.T) {
	svc := &mockPreview{}
	svc.On("Stats", mock.Anything).Return(domainAttachment.PreviewStats{Renders: 3}, nil)

	status, body := doJSON(t, newAttachmentApp(svc), http.MethodGet, "/attachments/stats", "")
	assert.Equal(t, http.StatusOK, status)
	results, ok := body.Results.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, results["live_renders"])
}
