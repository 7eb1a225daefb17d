package usecase

import (
	"context"
	"testing"
	"time"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	pkgError "github.com/AzielCF/az-wrap/pkg/error"
	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPreviewEnv(t *testing.T) (*testEnv, *servicePreview) {
	t.Helper()
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.loop.Run(ctx)

	cfg := coreconfig.Defaults()
	svc := NewPreviewService(env.svc, env.storage, env.loop, cfg, env.registry, env.decoder)
	return env, svc.(*servicePreview)
}

func stateOf(t *testing.T, svc *servicePreview, id string) []domainAttachment.State {
	t.Helper()
	res, err := svc.GetRender(context.Background(), id)
	require.NoError(t, err)
	states := make([]domainAttachment.State, len(res.Handles))
	for i, h := range res.Handles {
		states[i] = h.State
	}
	return states
}

func TestPreview_Layout(t *testing.T) {
	_, svc := newPreviewEnv(t)

	res, err := svc.Layout(context.Background(), domainAttachment.LayoutRequest{
		Sizes: []layouter.Size{{W: 1280, H: 720}, {W: 720, H: 1280}, {W: 1000, H: 1000}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.LessOrEqual(t, res.Width, layouter.DefaultMaxWidth)
	assert.Positive(t, res.Height)
	assert.GreaterOrEqual(t, res.Rows, 1)

	_, err = svc.Layout(context.Background(), domainAttachment.LayoutRequest{})
	assert.IsType(t, pkgError.ValidationError(""), err)
}

func TestPreview_RenderRejectsTailWithoutMessage(t *testing.T) {
	_, svc := newPreviewEnv(t)
	_, err := svc.Render(context.Background(), domainAttachment.RenderRequest{
		Descriptor: photoDescriptor("p1"),
		WithTail:   true,
	})
	assert.IsType(t, pkgError.ValidationError(""), err)
}

func TestPreview_RenderDownloadedPhotoWaitsForReady(t *testing.T) {
	env, svc := newPreviewEnv(t)
	env.registry.markDownloaded("p1_x")

	res, err := svc.Render(context.Background(), domainAttachment.RenderRequest{
		Descriptor: photoDescriptor("p1"),
		BoxWidth:   800,
		BoxHeight:  800,
		WaitMillis: 1000,
	})
	require.NoError(t, err)
	require.Len(t, res.Handles, 1)
	assert.Equal(t, domainAttachment.StateReady, res.Handles[0].State)
	assert.Equal(t, "immediate", res.Handles[0].Decision)
	assert.NotEmpty(t, res.RenderID)
	assert.Equal(t, "div", res.Tree.Tag)
}

func TestPreview_DocumentClickAndRevoke(t *testing.T) {
	env, svc := newPreviewEnv(t)
	env.registry.autoResolve = false
	ctx := context.Background()

	res, err := svc.Render(ctx, domainAttachment.RenderRequest{
		Descriptor: media.Descriptor{ID: "d1", Kind: media.KindDocument, FileName: "notes.txt", Size: 1024},
	})
	require.NoError(t, err)
	require.Len(t, res.Handles, 1)
	assert.Equal(t, domainAttachment.StatePlaceholder, res.Handles[0].State)

	_, err = svc.Click(ctx, res.RenderID)
	require.NoError(t, err)
	assert.Equal(t, []domainAttachment.State{domainAttachment.StateLoading}, stateOf(t, svc, res.RenderID))

	require.NoError(t, svc.Revoke(ctx, res.RenderID))
	env.registry.resolve("d1")

	_, err = svc.GetRender(ctx, res.RenderID)
	assert.IsType(t, pkgError.NotFoundError(""), err)
	assert.ErrorIs(t, svc.Revoke(ctx, res.RenderID), err)
}

func TestPreview_LazyStickerLoadsOnScroll(t *testing.T) {
	_, svc := newPreviewEnv(t)
	ctx := context.Background()

	res, err := svc.Render(ctx, domainAttachment.RenderRequest{
		Descriptor: media.Descriptor{
			ID: "s9", Kind: media.KindSticker, Sticker: media.StickerStatic,
			Thumbs: []media.Thumb{{Type: "i", W: 20, H: 20, Bytes: pngHeader}},
		},
		Lazy:       true,
		OffsetY:    3000,
		WaitMillis: 500,
	})
	require.NoError(t, err)
	require.Len(t, res.Handles, 1)
	assert.Equal(t, domainAttachment.StateQueued, res.Handles[0].State)
	assert.Equal(t, "deferred", res.Handles[0].Decision)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Renders)
	assert.Equal(t, 1, stats.Queue.Pending+stats.Queue.Ready)

	stats, err = svc.Scroll(ctx, domainAttachment.ScrollRequest{ScrollTop: 2500})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, stats.ScrollTop)

	assert.Eventually(t, func() bool {
		return stateOf(t, svc, res.RenderID)[0] == domainAttachment.StateReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPreview_AlbumWaitsForItems(t *testing.T) {
	env, svc := newPreviewEnv(t)
	env.storage.On("GetGroupedMessageIDs", mock.Anything, "g7").Return([]int64{2, 1}, nil)
	for _, id := range []int64{1, 2} {
		d := photoDescriptor("ph" + string(rune('0'+id)))
		env.storage.On("GetMessage", mock.Anything, id).Return(domainMessage.Message{
			ID: id, GroupID: "g7", Media: &domainMessage.Media{Photo: &d},
		}, nil)
	}

	res, err := svc.RenderAlbum(context.Background(), domainAttachment.AlbumRenderRequest{GroupID: "g7", WaitMillis: 1000})
	require.NoError(t, err)
	require.Len(t, res.Handles, 2)
	for _, h := range res.Handles {
		assert.Equal(t, domainAttachment.StateReady, h.State)
	}
	require.Len(t, res.Tree.Children, 2)
	assert.Equal(t, "1", res.Tree.Children[0].Data["mid"])
}

func TestPreview_EmptyAlbumIsNotFound(t *testing.T) {
	env, svc := newPreviewEnv(t)
	env.storage.On("GetGroupedMessageIDs", mock.Anything, "none").Return([]int64{}, nil)

	_, err := svc.RenderAlbum(context.Background(), domainAttachment.AlbumRenderRequest{GroupID: "none"})
	assert.IsType(t, pkgError.NotFoundError(""), err)
}

func TestPreview_ReplyWithMissingMessage(t *testing.T) {
	env, svc := newPreviewEnv(t)
	env.storage.On("GetMessage", mock.Anything, int64(99)).Return(domainMessage.Message{}, domainMessage.ErrMessageNotFound)

	_, err := svc.RenderReply(context.Background(), domainAttachment.ReplyRenderRequest{Title: "Ana", MessageID: 99})
	assert.IsType(t, pkgError.NotFoundError(""), err)

	res, err := svc.RenderReply(context.Background(), domainAttachment.ReplyRenderRequest{Title: "Ana", Subtitle: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, domainAttachment.StateReady, res.Handles[0].State)
}

func TestPreview_FailedLazyRenderLeavesNothingBehind(t *testing.T) {
	_, svc := newPreviewEnv(t)
	ctx := context.Background()

	_, err := svc.Render(ctx, domainAttachment.RenderRequest{
		Descriptor: media.Descriptor{ID: "s0", Kind: media.KindSticker},
		Lazy:       true,
	})
	require.ErrorIs(t, err, media.ErrInvariantViolation)

	require.NoError(t, svc.loop.Sync(ctx, func() {
		assert.Empty(t, svc.scroll.Children())
	}))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Renders)
	assert.Zero(t, stats.Queue.Pending)
}

func TestPreview_LazyStickerOnScreenLoadsWithoutScroll(t *testing.T) {
	_, svc := newPreviewEnv(t)
	ctx := context.Background()

	res, err := svc.Render(ctx, domainAttachment.RenderRequest{
		Descriptor: media.Descriptor{
			ID: "s1", Kind: media.KindSticker, Sticker: media.StickerStatic,
			Thumbs: []media.Thumb{{Type: "i", W: 20, H: 20, Bytes: pngHeader}},
		},
		Lazy:    true,
		OffsetY: 0,
	})
	require.NoError(t, err)
	require.Len(t, res.Handles, 1)
	assert.Equal(t, "deferred", res.Handles[0].Decision)

	assert.Eventually(t, func() bool {
		return stateOf(t, svc, res.RenderID)[0] == domainAttachment.StateReady
	}, 2*time.Second, 10*time.Millisecond)
}
