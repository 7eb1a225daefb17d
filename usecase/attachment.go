package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/imagebox"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/liveness"
	"github.com/AzielCF/az-wrap/pkg/preloader"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/sirupsen/logrus"
)

type serviceAttachment struct {
	registry media.IRegistry
	decoder  media.IDecoder
	storage  domainMessage.IGroupedStorage
	loop     *uiloop.Loop
	cfg      coreconfig.MediaConfig

	onProgress func(preloader.Update)
}

// AttachmentOption configures the attachment service.
type AttachmentOption func(*serviceAttachment)

// WithProgressHook forwards every preloader update, e.g. to the websocket hub.
func WithProgressHook(fn func(preloader.Update)) AttachmentOption {
	return func(s *serviceAttachment) { s.onProgress = fn }
}

func NewAttachmentService(registry media.IRegistry, decoder media.IDecoder, storage domainMessage.IGroupedStorage, loop *uiloop.Loop, cfg coreconfig.MediaConfig, opts ...AttachmentOption) domainAttachment.IAttachmentUsecase {
	s := &serviceAttachment{
		registry: registry,
		decoder:  decoder,
		storage:  storage,
		loop:     loop,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceAttachment) WrapMedia(ctx context.Context, req domainAttachment.MediaRequest) (*domainAttachment.Handle, error) {
	switch req.Doc.Kind {
	case media.KindPhoto:
		return s.WrapPhoto(ctx, domainAttachment.PhotoRequest{
			Photo: req.Doc, Message: req.Message, Container: req.Container,
			BoxWidth: req.BoxWidth, BoxHeight: req.BoxHeight, WithTail: req.WithTail, IsOut: req.IsOut,
			Token: req.Token, Queue: req.Queue,
		})
	case media.KindVideo, media.KindGif, media.KindRound:
		return s.WrapVideo(ctx, domainAttachment.VideoRequest{
			Doc: req.Doc, Container: req.Container, Message: req.Message,
			BoxWidth: req.BoxWidth, BoxHeight: req.BoxHeight, WithTail: req.WithTail, IsOut: req.IsOut,
			Group: req.Group, Token: req.Token, Queue: req.Queue,
		})
	case media.KindSticker:
		return s.WrapSticker(ctx, domainAttachment.StickerRequest{
			Doc: req.Doc, Container: req.Container, Token: req.Token, Queue: req.Queue,
			Group: req.Group, Play: true, Loop: true,
		})
	case media.KindDocument, media.KindAudio, media.KindVoice:
		var mid int64
		if req.Message != nil {
			mid = req.Message.ID
		}
		h, err := s.WrapDocument(ctx, domainAttachment.DocumentRequest{Doc: req.Doc, WithTime: req.WithTime, MessageID: mid, Token: req.Token})
		if err == nil && req.Container != nil {
			req.Container.Append(h.Target)
		}
		return h, err
	default:
		return nil, fmt.Errorf("%w: unknown media kind %q", media.ErrInvariantViolation, req.Doc.Kind)
	}
}

// schedule runs load now or hands it to the queue, recording the decision on h.
func (s *serviceAttachment) schedule(h *domainAttachment.Handle, queue domainAttachment.Queue, downloaded, wasSeen bool, load func() lazyload.Waiter) {
	h.Decision = domainAttachment.Decide(downloaded, wasSeen, queue)
	switch {
	case h.Decision == domainAttachment.Deferred:
		h.Transition(domainAttachment.StateQueued)
		queue.Push(lazyload.Task{Target: h.Target, Load: load})
	case downloaded || queue == nil:
		load()
	default:
		queue.Push(lazyload.Task{Target: h.Target, Load: load, WasSeen: true})
	}
}

// begin moves h to Loading unless its token was revoked while it waited.
func begin(h *domainAttachment.Handle) bool {
	if !h.Token.IsAlive() {
		h.Abort()
		return false
	}
	h.Transition(domainAttachment.StateLoading)
	return true
}

// complete settles a load on the UI loop. apply runs only while the token is alive.
func (s *serviceAttachment) complete(h *domainAttachment.Handle, err error, apply func()) {
	if !h.Token.IsAlive() {
		logrus.Debugf("[WRAPPERS] dropping stale completion for %s", h.ID)
		h.Abort()
		return
	}
	if err != nil {
		if errors.Is(err, media.ErrCancelled) {
			h.Cancel()
			return
		}
		logrus.WithError(err).Warnf("[WRAPPERS] %s load failed", h.Kind)
		h.Fail(err)
		return
	}
	if apply != nil {
		apply()
	}
	h.Ready()
}

// await posts the outcome of f back to the UI loop.
func await[T any](s *serviceAttachment, f *future.Future[T], fn func(T, error)) {
	f.Then(func(v T, err error) {
		s.post(func() { fn(v, err) })
	})
}

func (s *serviceAttachment) post(fn func()) {
	if s.loop == nil {
		fn()
		return
	}
	s.loop.Post(fn)
}

func (s *serviceAttachment) newPreloader(token *liveness.Token) *preloader.Preloader {
	return preloader.New(s.loop, preloader.WithLiveness(token.IsAlive), preloader.WithUpdateHook(s.onProgress))
}

func px(v int) string { return strconv.Itoa(v) + "px" }

func parsePx(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	return n, err == nil
}

// setAttachmentSize sizes elem to fit d into the box and returns the preview size chosen
// for it. Foreign objects get attributes, everything else gets a style.
func (s *serviceAttachment) setAttachmentSize(d media.Descriptor, elem *rendertree.Node, boxW, boxH int, noZoom bool) *media.Thumb {
	th, ok := s.registry.ChoosePreviewSize(d, boxW, boxH)
	dims := d.Dimensions()
	if d.IsPhoto() && ok && !th.Size().Empty() {
		dims = th.Size()
	}
	box := imagebox.CalcImageInBox(dims.W, dims.H, boxW, boxH, noZoom)

	if elem.Kind() == rendertree.KindForeignObject {
		elem.SetAttr("width", strconv.Itoa(box.W))
		elem.SetAttr("height", strconv.Itoa(box.H))
	} else {
		elem.SetStyle("width", px(box.W))
		elem.SetStyle("height", px(box.H))
	}
	if !ok {
		return nil
	}
	return &th
}

// setAttachmentPreview draws inline preview bytes into elem, as a background or as an image.
func setAttachmentPreview(data []byte, elem *rendertree.Node, background bool) {
	url := utils.DataURL(data)
	if url == "" {
		return
	}
	if background {
		elem.SetStyle("background-image", "url("+url+")")
		return
	}
	if elem.Kind() == rendertree.KindForeignObject {
		if first := elem.FirstChild(); first != nil {
			elem = first
		}
	}
	if elem.Kind() == rendertree.KindImage {
		elem.SetSource(url)
		return
	}
	elem.Append(rendertree.New(rendertree.KindImage).SetSource(url))
}

// lastImage returns the trailing image of container, appending one if needed.
func lastImage(container *rendertree.Node) *rendertree.Node {
	if last := container.LastChild(); last != nil && last.Kind() == rendertree.KindImage {
		return last
	}
	img := rendertree.New(rendertree.KindImage)
	container.Append(img)
	return img
}

// wrapMediaWithTail draws the bubble-tail clipped media box and returns its image node.
func (s *serviceAttachment) wrapMediaWithTail(d media.Descriptor, msg *domainMessage.Message, container *rendertree.Node, boxW, boxH int, isOut bool) *rendertree.Node {
	side := "is-in"
	if isOut {
		side = "is-out"
	}
	svg := rendertree.New(rendertree.KindSVG).AddClass("bubble__media-container", side)
	fo := rendertree.New(rendertree.KindForeignObject)
	s.setAttachmentSize(d, fo, boxW, boxH, false)

	wAttr, _ := fo.Attr("width")
	hAttr, _ := fo.Attr("height")
	width, _ := strconv.Atoi(wAttr)
	height, _ := strconv.Atoi(hAttr)

	svg.SetAttr("width", wAttr)
	svg.SetAttr("height", hAttr)
	svg.SetAttr("viewBox", fmt.Sprintf("0 0 %d %d", width, height))
	svg.SetAttr("preserveAspectRatio", "none")

	clipID := "clip" + strconv.FormatInt(msg.ID, 10)
	svg.SetData("clip-id", clipID)

	clip := rendertree.New(rendertree.KindClipPath).SetAttr("id", clipID)
	if msg.Text == "" {
		transform := fmt.Sprintf("translate(2, %d) scale(1, -1)", height)
		if isOut {
			transform = fmt.Sprintf("translate(%d, %d) scale(-1, -1)", width-2, height)
		}
		clip.Append(
			rendertree.New(rendertree.KindUse).SetAttr("href", "#message-tail").SetAttr("transform", transform),
			rendertree.NewCustom("path"),
		)
	}
	defs := rendertree.New(rendertree.KindDefs).Append(clip)

	cw, ok := parsePx(container.Style("width"))
	if !ok {
		cw = width
	}
	container.SetStyle("width", px(cw-9))
	container.AddClass("with-tail")

	svg.Append(defs, fo)
	container.Append(svg)

	img := fo.FirstChild()
	if img == nil {
		img = rendertree.New(rendertree.KindImage)
		fo.Append(img)
	}
	return img
}

// uploadPreloader returns the preloader of media still being sent from this client.
func uploadPreloader(msg *domainMessage.Message) *preloader.Preloader {
	if msg == nil || msg.Media == nil {
		return nil
	}
	return msg.Media.Upload
}
