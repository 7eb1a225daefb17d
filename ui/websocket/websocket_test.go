package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/pkg/preloader"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPreview struct {
	domainAttachment.IPreviewUsecase
	scrolled []float64
}

func (s *stubPreview) Stats(context.Context) (domainAttachment.PreviewStats, error) {
	return domainAttachment.PreviewStats{Renders: 2}, nil
}

func (s *stubPreview) Scroll(_ context.Context, r domainAttachment.ScrollRequest) (domainAttachment.PreviewStats, error) {
	s.scrolled = append(s.scrolled, r.ScrollTop)
	return domainAttachment.PreviewStats{ScrollTop: r.ScrollTop}, nil
}

func receive(t *testing.T) BroadcastMessage {
	t.Helper()
	select {
	case msg := <-Broadcast:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no broadcast")
		return BroadcastMessage{}
	}
}

func TestProgressMessage(t *testing.T) {
	msg := progressMessage(preloader.Update{PreloaderID: "p1", Percent: 40})
	assert.Equal(t, CodePreloaderProgress, msg.Code)
	assert.Equal(t, "Download progress", msg.Message)

	msg = progressMessage(preloader.Update{PreloaderID: "p1", Cancelled: true, Detached: true})
	assert.Equal(t, "Download cancelled", msg.Message)
}

func TestPublishProgress_DoesNotBlockWithoutHub(t *testing.T) {
	done := make(chan struct{})
	go func() {
		PublishProgress(preloader.Update{PreloaderID: "p2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishProgress blocked")
	}
}

func TestHandleClientMessage(t *testing.T) {
	svc := &stubPreview{}

	go handleClientMessage(context.Background(), svc, clientMessage{Code: "FETCH_STATS", Token: "t1"})
	msg := receive(t)
	assert.Equal(t, CodePipelineStats, msg.Code)
	assert.Equal(t, "t1", msg.Token)
	assert.Equal(t, 2, msg.Result.(domainAttachment.PreviewStats).Renders)

	raw, err := json.Marshal(domainAttachment.ScrollRequest{ScrollTop: 900})
	require.NoError(t, err)
	go handleClientMessage(context.Background(), svc, clientMessage{Code: "SCROLL", Result: raw})
	msg = receive(t)
	assert.Equal(t, 900.0, msg.Result.(domainAttachment.PreviewStats).ScrollTop)
	assert.Equal(t, []float64{900}, svc.scrolled)
}

func TestRegisterRoutes_RequiresUpgrade(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, &stubPreview{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
