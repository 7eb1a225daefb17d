package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	pkgError "github.com/AzielCF/az-wrap/pkg/error"
	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/liveness"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/AzielCF/az-wrap/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type renderEntry struct {
	id      string
	token   *liveness.Token
	root    *rendertree.Node
	handles []*domainAttachment.Handle
}

type inflightCounter interface {
	Inflight() int
}

type poolStatser interface {
	Stats() decodeworker.PoolStats
}

type servicePreview struct {
	attachment domainAttachment.IAttachmentUsecase
	storage    domainMessage.IGroupedStorage
	loop       *uiloop.Loop
	media      coreconfig.MediaConfig

	inflight inflightCounter
	pool     poolStatser

	viewport *lazyload.Viewport
	queue    *lazyload.Queue
	scroll   *rendertree.Node

	mu      sync.Mutex
	renders map[string]*renderEntry
}

// NewPreviewService renders attachments on behalf of remote callers. Lazy albums share one
// scroll view whose viewport is moved through Scroll. registry and decoder are only used
// for stats when they expose them.
func NewPreviewService(attachment domainAttachment.IAttachmentUsecase, storage domainMessage.IGroupedStorage, loop *uiloop.Loop, cfg *coreconfig.Config, registry, decoder any) domainAttachment.IPreviewUsecase {
	viewport := lazyload.NewViewport(cfg.LazyLoad.ViewportHeight, cfg.LazyLoad.PreloadMargin)
	s := &servicePreview{
		attachment: attachment,
		storage:    storage,
		loop:       loop,
		media:      cfg.Media,
		viewport:   viewport,
		queue:      lazyload.New(viewport, loop, lazyload.WithParallelLimit(cfg.LazyLoad.ParallelLimit)),
		scroll:     rendertree.NewRoot(),
		renders:    make(map[string]*renderEntry),
	}
	s.inflight, _ = registry.(inflightCounter)
	s.pool, _ = decoder.(poolStatser)
	return s
}

func (s *servicePreview) Layout(ctx context.Context, request domainAttachment.LayoutRequest) (response domainAttachment.LayoutResponse, err error) {
	if err = validations.ValidateLayout(ctx, request); err != nil {
		return response, err
	}

	cfg := layouter.DefaultConfig()
	if request.MaxWidth > 0 {
		cfg.MaxWidth = request.MaxWidth
	}
	if request.MinWidth > 0 {
		cfg.MinWidth = request.MinWidth
	}
	if request.Spacing > 0 {
		cfg.Spacing = request.Spacing
	}
	cfg.MaxHeight = request.MaxHeight

	items := layouter.Layout(request.Sizes, cfg)
	response.Items = items
	response.Width = layouter.TotalWidth(items)
	response.Height = layouter.TotalHeight(items)
	response.Rows = len(layouter.Rows(items))
	return response, nil
}

func (s *servicePreview) Render(ctx context.Context, request domainAttachment.RenderRequest) (response domainAttachment.RenderResponse, err error) {
	if err = validations.ValidateRender(ctx, request); err != nil {
		return response, err
	}

	var msg *domainMessage.Message
	if request.MessageID != 0 {
		m, err := s.storage.GetMessage(ctx, request.MessageID)
		if err != nil {
			return response, notFound(err)
		}
		msg = &m
	}

	entry := s.newEntry(rendertree.New(rendertree.KindDiv).AddClass("attachment"))
	var werr error
	err = s.loop.Sync(ctx, func() {
		req := domainAttachment.MediaRequest{
			Doc:       request.Descriptor,
			Message:   msg,
			Container: entry.root,
			BoxWidth:  request.BoxWidth,
			BoxHeight: request.BoxHeight,
			WithTail:  request.WithTail,
			IsOut:     request.IsOut,
			WithTime:  request.WithTime,
			Group:     request.Group,
			Token:     entry.token,
		}
		if request.Lazy {
			s.place(entry, request.OffsetY, request.BoxWidth, request.BoxHeight)
			req.Queue = s.queue
		}
		var h *domainAttachment.Handle
		h, werr = s.attachment.WrapMedia(context.WithoutCancel(ctx), req)
		if h != nil {
			entry.handles = append(entry.handles, h)
		}
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		s.teardown(entry)
		return response, err
	}

	s.store(entry)
	wait := request.WaitMillis
	if request.Lazy {
		wait = 0
	}
	return s.finish(ctx, entry, wait)
}

func (s *servicePreview) RenderAlbum(ctx context.Context, request domainAttachment.AlbumRenderRequest) (response domainAttachment.RenderResponse, err error) {
	if err = validations.ValidateAlbumRender(ctx, request); err != nil {
		return response, err
	}

	entry := s.newEntry(rendertree.New(rendertree.KindDiv).AddClass("album"))
	var werr error
	err = s.loop.Sync(ctx, func() {
		req := domainAttachment.AlbumRequest{
			GroupID:   request.GroupID,
			Container: entry.root,
			Token:     entry.token,
			IsOut:     request.IsOut,
		}
		if request.Lazy {
			s.place(entry, request.OffsetY, s.media.AlbumWidth, s.media.AlbumWidth)
			req.Queue = s.queue
		}
		entry.handles, werr = s.attachment.WrapAlbum(context.WithoutCancel(ctx), req)
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		s.teardown(entry)
		return response, err
	}
	if len(entry.handles) == 0 {
		s.teardown(entry)
		return response, pkgError.NotFoundError(fmt.Sprintf("album %s has no media", request.GroupID))
	}

	s.store(entry)
	wait := request.WaitMillis
	if request.Lazy {
		wait = 0
	}
	return s.finish(ctx, entry, wait)
}

func (s *servicePreview) RenderReply(ctx context.Context, request domainAttachment.ReplyRenderRequest) (response domainAttachment.RenderResponse, err error) {
	if err = validations.ValidateReplyRender(ctx, request); err != nil {
		return response, err
	}

	var msg *domainMessage.Message
	if request.MessageID != 0 {
		m, err := s.storage.GetMessage(ctx, request.MessageID)
		if err != nil {
			return response, notFound(err)
		}
		msg = &m
	}

	entry := s.newEntry(rendertree.New(rendertree.KindDiv))
	var werr error
	err = s.loop.Sync(ctx, func() {
		var h *domainAttachment.Handle
		h, werr = s.attachment.WrapReply(context.WithoutCancel(ctx), domainAttachment.ReplyRequest{
			Title:    request.Title,
			Subtitle: request.Subtitle,
			Message:  msg,
			IsPinned: request.IsPinned,
			Token:    entry.token,
		})
		if h != nil {
			entry.root.Append(h.Target)
			entry.handles = append(entry.handles, h)
		}
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		s.teardown(entry)
		return response, err
	}

	s.store(entry)
	return s.finish(ctx, entry, request.WaitMillis)
}

func (s *servicePreview) GetRender(ctx context.Context, renderID string) (response domainAttachment.RenderResponse, err error) {
	entry, err := s.lookup(renderID)
	if err != nil {
		return response, err
	}
	return s.snapshot(ctx, entry)
}

func (s *servicePreview) Click(ctx context.Context, renderID string) (response domainAttachment.RenderResponse, err error) {
	entry, err := s.lookup(renderID)
	if err != nil {
		return response, err
	}
	err = s.loop.Sync(ctx, func() {
		if len(entry.handles) > 0 && entry.handles[0].Target != nil {
			entry.handles[0].Target.Dispatch("click")
		}
	})
	if err != nil {
		return response, err
	}
	return s.snapshot(ctx, entry)
}

func (s *servicePreview) Revoke(ctx context.Context, renderID string) error {
	entry, err := s.lookup(renderID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.renders, renderID)
	s.mu.Unlock()

	entry.token.Revoke()
	return s.loop.Sync(ctx, func() { s.detach(entry) })
}

func (s *servicePreview) Scroll(ctx context.Context, request domainAttachment.ScrollRequest) (domainAttachment.PreviewStats, error) {
	if err := validations.ValidateScroll(ctx, request); err != nil {
		return domainAttachment.PreviewStats{}, err
	}
	if request.Height > 0 {
		s.viewport.Resize(request.Height)
	}
	s.viewport.ScrollTo(request.ScrollTop)
	logrus.Debugf("[PREVIEW] viewport moved to %.0f", request.ScrollTop)
	return s.Stats(ctx)
}

func (s *servicePreview) Stats(_ context.Context) (domainAttachment.PreviewStats, error) {
	s.mu.Lock()
	renders := len(s.renders)
	s.mu.Unlock()

	stats := domainAttachment.PreviewStats{
		Queue:     s.queue.Stats(),
		Renders:   renders,
		ScrollTop: s.viewport.ScrollTop(),
	}
	if s.pool != nil {
		stats.DecodePool = s.pool.Stats()
	} else {
		stats.DecodePool = decodeworker.GetGlobalStats()
	}
	if s.inflight != nil {
		stats.Inflight = s.inflight.Inflight()
	}
	return stats, nil
}

func (s *servicePreview) newEntry(root *rendertree.Node) *renderEntry {
	return &renderEntry{id: uuid.NewString(), token: liveness.New(), root: root}
}

func (s *servicePreview) store(entry *renderEntry) {
	s.mu.Lock()
	s.renders[entry.id] = entry
	s.mu.Unlock()
}

func (s *servicePreview) lookup(renderID string) (*renderEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.renders[renderID]
	if !ok {
		return nil, pkgError.NotFoundError(fmt.Sprintf("render %s not found", renderID))
	}
	return entry, nil
}

// place mounts the render in the shared scroll view. It must run on the UI loop.
func (s *servicePreview) place(entry *renderEntry, offsetY, width, height int) {
	if width <= 0 {
		width = s.media.StickerSize
	}
	if height <= 0 {
		height = s.media.StickerSize
	}
	entry.root.SetBounds(rendertree.Rect{Y: float64(offsetY), Width: float64(width), Height: float64(height)})
	s.scroll.Append(entry.root)
}

func (s *servicePreview) teardown(entry *renderEntry) {
	entry.token.Revoke()
	if err := s.loop.Sync(context.Background(), func() { s.detach(entry) }); err != nil {
		logrus.WithError(err).Warn("[PREVIEW] teardown failed")
	}
}

// detach must run on the UI loop.
func (s *servicePreview) detach(entry *renderEntry) {
	for _, h := range entry.handles {
		s.queue.Unobserve(h.Target)
	}
	entry.root.Detach()
}

// finish waits up to waitMillis for every handle to settle, then snapshots the render.
// Handles still loading when the wait runs out are reported as they are.
func (s *servicePreview) finish(ctx context.Context, entry *renderEntry, waitMillis int) (domainAttachment.RenderResponse, error) {
	if waitMillis > 0 {
		wctx, cancel := context.WithTimeout(ctx, time.Duration(waitMillis)*time.Millisecond)
		for _, h := range entry.handles {
			if err := h.Wait(wctx); errors.Is(err, context.DeadlineExceeded) {
				break
			}
		}
		cancel()
	}
	return s.snapshot(ctx, entry)
}

func (s *servicePreview) snapshot(ctx context.Context, entry *renderEntry) (response domainAttachment.RenderResponse, err error) {
	response.RenderID = entry.id
	err = s.loop.Sync(ctx, func() {
		response.Tree = entry.root.Snapshot()
	})
	for _, h := range entry.handles {
		response.Handles = append(response.Handles, h.Status())
	}
	return response, err
}

func notFound(err error) error {
	if errors.Is(err, domainMessage.ErrMessageNotFound) {
		return pkgError.NotFoundError(err.Error())
	}
	return err
}
