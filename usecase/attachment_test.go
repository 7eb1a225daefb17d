package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/imagebox"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/liveness"
	"github.com/AzielCF/az-wrap/pkg/preloader"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

const lottieJSON = `{"v":"5.5.2","nm":"wave","fr":60,"ip":0,"op":3,"w":512,"h":512,"layers":[]}`

type fakeRegistry struct {
	mu          sync.Mutex
	autoResolve bool
	states      map[string]media.State
	inflight    map[string]*future.Future[media.Resource]
	paths       map[string]string
	calls       map[string]int
	converted   map[string][]byte
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		autoResolve: true,
		states:      make(map[string]media.State),
		inflight:    make(map[string]*future.Future[media.Resource]),
		paths:       make(map[string]string),
		calls:       make(map[string]int),
		converted:   make(map[string][]byte),
	}
}

func (r *fakeRegistry) Download(_ context.Context, d media.Descriptor, thumb *media.Thumb) *future.Future[media.Resource] {
	if thumb != nil && thumb.Inline() {
		return future.Resolved(media.Resource{URL: utils.DataURL(thumb.Bytes)})
	}
	key := d.Key(thumb)

	r.mu.Lock()
	r.calls[key]++
	if st := r.states[key]; st.Downloaded {
		r.mu.Unlock()
		return future.Resolved(media.Resource{URL: st.URL, Path: r.paths[key]})
	}
	if f, ok := r.inflight[key]; ok && !f.Settled() {
		r.mu.Unlock()
		return future.Mirror(f, nil)
	}
	f := future.New[media.Resource]()
	r.inflight[key] = f
	auto := r.autoResolve
	r.mu.Unlock()

	if auto {
		r.resolve(key)
		return f
	}
	return future.Mirror(f, nil)
}

func (r *fakeRegistry) resolve(key string) {
	r.mu.Lock()
	f := r.inflight[key]
	url := "/media/" + key
	r.states[key] = media.State{Downloaded: true, URL: url}
	path := r.paths[key]
	r.mu.Unlock()
	f.Resolve(media.Resource{URL: url, Path: path})
}

func (r *fakeRegistry) downloads(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *fakeRegistry) markDownloaded(key string) {
	r.mu.Lock()
	r.states[key] = media.State{Downloaded: true, URL: "/media/" + key}
	r.mu.Unlock()
}

func (r *fakeRegistry) CachedURL(_ context.Context, d media.Descriptor) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.states[d.ID]
	return st.URL, st.Downloaded
}

func (r *fakeRegistry) ChoosePreviewSize(d media.Descriptor, maxW, maxH int) (media.Thumb, bool) {
	sizes := make([]imagebox.Size, len(d.Thumbs))
	for i, t := range d.Thumbs {
		sizes[i] = t.Size()
	}
	idx := imagebox.ChoosePhotoSize(sizes, maxW, maxH)
	if idx < 0 {
		return media.Thumb{}, false
	}
	return d.Thumbs[idx], true
}

func (r *fakeRegistry) PreviewURL(t media.Thumb) string { return utils.DataURL(t.Bytes) }

func (r *fakeRegistry) State(_ context.Context, id string) media.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id]
}

func (r *fakeRegistry) MarkThumbConverted(_ context.Context, id string, thumb []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converted[id] = thumb
	st := r.states[id]
	st.ThumbConverted, st.ConvertedThumb = true, thumb
	r.states[id] = st
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetGroupedMessageIDs(ctx context.Context, groupID string) ([]int64, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockStorage) GetMessage(ctx context.Context, id int64) (domainMessage.Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domainMessage.Message), args.Error(1)
}

func (m *mockStorage) SaveMessage(ctx context.Context, msg domainMessage.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type recordingQueue struct {
	tasks []lazyload.Task
}

func (q *recordingQueue) Push(task lazyload.Task) { q.tasks = append(q.tasks, task) }

type testEnv struct {
	svc      *serviceAttachment
	registry *fakeRegistry
	storage  *mockStorage
	decoder  *decodeworker.Decoder
	loop     *uiloop.Loop
	updates  []preloader.Update
}

func newTestEnv(t *testing.T, mutate ...func(*coreconfig.MediaConfig)) *testEnv {
	t.Helper()
	cfg := coreconfig.Defaults().Media
	for _, fn := range mutate {
		fn(&cfg)
	}
	env := &testEnv{
		registry: newFakeRegistry(),
		storage:  &mockStorage{},
		loop:     uiloop.New(),
	}
	env.decoder = decodeworker.NewDecoder(env.loop, 2, 10)
	t.Cleanup(env.decoder.Stop)

	svc := NewAttachmentService(env.registry, env.decoder, env.storage, env.loop, cfg,
		WithProgressHook(func(u preloader.Update) { env.updates = append(env.updates, u) }))
	env.svc = svc.(*serviceAttachment)
	return env
}

func (e *testEnv) drainUntil(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.loop.Drain()
		return cond()
	}, 2*time.Second, 5*time.Millisecond)
}

func images(n *rendertree.Node) []*rendertree.Node {
	return n.Find(func(c *rendertree.Node) bool { return c != n && c.Kind() == rendertree.KindImage })
}

func preloaders(n *rendertree.Node) []*rendertree.Node {
	return n.Find(func(c *rendertree.Node) bool { return c.HasClass(preloader.ClassContainer) })
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWrapSticker_StaticDeferredUntilVisible(t *testing.T) {
	env := newTestEnv(t)
	viewport := lazyload.NewViewport(800, 200)
	queue := lazyload.New(viewport, env.loop)

	root := rendertree.NewRoot()
	div := rendertree.New(rendertree.KindDiv).SetBounds(rendertree.Rect{Y: 3000, Width: 200, Height: 200})
	root.Append(div)

	doc := media.Descriptor{
		ID: "s1", Kind: media.KindSticker, Sticker: media.StickerStatic,
		Thumbs: []media.Thumb{{Type: "i", W: 20, H: 20, Bytes: pngHeader}},
	}
	h, err := env.svc.WrapSticker(context.Background(), domainAttachment.StickerRequest{
		Doc: doc, Container: div, Queue: queue, Token: liveness.New(), Play: true, Loop: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domainAttachment.Deferred, h.Decision)
	assert.Equal(t, []domainAttachment.State{domainAttachment.StatePlaceholder, domainAttachment.StateQueued}, h.History())
	assert.Len(t, images(div), 1, "thumbnail drawn synchronously")
	assert.Equal(t, 0, env.registry.downloads("s1"))

	viewport.ScrollTo(2500)
	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })

	assert.Equal(t, []domainAttachment.State{
		domainAttachment.StatePlaceholder, domainAttachment.StateQueued,
		domainAttachment.StateLoading, domainAttachment.StateReady,
	}, h.History())
	imgs := images(div)
	require.Len(t, imgs, 1)
	assert.Equal(t, "/media/s1", imgs[0].Source())
	assert.Empty(t, preloaders(div))
	assert.NoError(t, h.Err())
}

func TestWrapSticker_VectorThumbRemovedOnFirstFrame(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "v1.tgs")
	require.NoError(t, os.WriteFile(path, []byte(lottieJSON), 0o644))
	env.registry.paths["v1"] = path

	div := rendertree.New(rendertree.KindDiv)
	doc := media.Descriptor{
		ID: "v1", Kind: media.KindSticker, Sticker: media.StickerVector,
		Thumbs: []media.Thumb{{Type: "i", W: 20, H: 20, Bytes: pngHeader}},
	}
	require.False(t, env.decoder.Warmed())

	h, err := env.svc.WrapSticker(context.Background(), domainAttachment.StickerRequest{
		Doc: doc, Container: div, Token: liveness.New(), Play: true, Loop: true,
	})
	require.NoError(t, err)
	assert.True(t, env.decoder.Warmed())
	require.Len(t, images(div), 1, "thumbnail is drawn before the decode finishes")
	assert.Equal(t, "v1", div.Data("doc-id"))

	env.drainUntil(t, func() bool {
		return h.State() == domainAttachment.StateReady && len(div.FindKind(rendertree.KindCanvas)) == 1 && len(images(div)) == 0
	})

	canvas := div.FindKind(rendertree.KindCanvas)[0]
	assert.False(t, canvas.HasClass("fade-in"), "first frame handled once, with the thumbnail present")
	assert.Len(t, div.Children(), 1)
}

func TestWrapSticker_DownloadedVectorLoadsImmediately(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "v2.tgs")
	require.NoError(t, os.WriteFile(path, []byte(lottieJSON), 0o644))
	env.registry.paths["v2"] = path
	env.registry.markDownloaded("v2")

	doc := media.Descriptor{ID: "v2", Kind: media.KindSticker, Sticker: media.StickerVector}
	queue := &recordingQueue{}
	for i := 0; i < 2; i++ {
		div := rendertree.New(rendertree.KindDiv)
		h, err := env.svc.WrapSticker(context.Background(), domainAttachment.StickerRequest{
			Doc: doc, Container: div, Token: liveness.New(), Queue: queue, Play: true,
		})
		require.NoError(t, err)
		assert.Equal(t, domainAttachment.Immediate, h.Decision)
		assert.NotContains(t, h.History(), domainAttachment.StateQueued)

		env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
		assert.Len(t, div.FindKind(rendertree.KindCanvas), 1)
	}
	assert.Empty(t, queue.tasks)
	assert.True(t, env.decoder.Warmed())
}

func TestWrapSticker_ConvertsThumbWithoutNativeWebP(t *testing.T) {
	env := newTestEnv(t, func(c *coreconfig.MediaConfig) { c.NativeWebP = false })
	div := rendertree.New(rendertree.KindDiv)
	doc := media.Descriptor{
		ID: "c1", Kind: media.KindSticker, Sticker: media.StickerStatic,
		Thumbs: []media.Thumb{{Type: "i", W: 4, H: 4, Bytes: pngBytes(t)}},
	}

	h, err := env.svc.WrapSticker(context.Background(), domainAttachment.StickerRequest{
		Doc: doc, Container: div, OnlyThumb: true, Token: liveness.New(),
	})
	require.NoError(t, err)
	assert.Empty(t, div.Children(), "conversion runs on the pool")

	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
	require.Len(t, images(div), 1)
	assert.True(t, strings.HasPrefix(images(div)[0].Source(), "data:image/png;base64,"))
	assert.Equal(t, 0, env.registry.downloads("c1"))

	assert.Eventually(t, func() bool {
		env.registry.mu.Lock()
		defer env.registry.mu.Unlock()
		_, converted := env.registry.converted["c1"]
		return converted
	}, time.Second, 5*time.Millisecond)
}

func TestWrapSticker_MissingKindIsInvariantViolation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.WrapSticker(context.Background(), domainAttachment.StickerRequest{
		Doc:       media.Descriptor{ID: "x", Kind: media.KindSticker},
		Container: rendertree.New(rendertree.KindDiv),
	})
	assert.ErrorIs(t, err, media.ErrInvariantViolation)
}

func TestEmojiToneIndex(t *testing.T) {
	assert.Equal(t, -1, emojiToneIndex(""))
	assert.Equal(t, 0, emojiToneIndex("👍"))
	assert.Equal(t, 1, emojiToneIndex("👍🏻"))
	assert.Equal(t, 5, emojiToneIndex("👍🏿"))
}

func TestWrapDocument_ClickDownloadAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.registry.autoResolve = false

	doc := media.Descriptor{ID: "d1", Kind: media.KindDocument, FileName: "report.pdf", Size: 5_242_880}
	h, err := env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{Doc: doc})
	require.NoError(t, err)

	node := h.Target
	assert.True(t, node.HasClass("ext-pdf"))
	assert.Equal(t, "5 MB", node.FindByClass("document-size").Text())
	assert.Equal(t, "report.pdf", node.FindByClass("document-name").Text())
	require.NotNil(t, node.FindByClass("document-download"))

	node.Dispatch("click")
	assert.Equal(t, domainAttachment.StateLoading, h.State())
	assert.True(t, node.HasClass(classDownloading))
	assert.Len(t, preloaders(node), 1)

	node.Dispatch("click")
	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StatePlaceholder })
	assert.ErrorIs(t, h.Err(), media.ErrCancelled)
	assert.False(t, node.HasClass(classDownloading))
	assert.NotNil(t, node.FindByClass("document-download"), "affordance stays for a retry")
	assert.Equal(t, []domainAttachment.State{
		domainAttachment.StatePlaceholder, domainAttachment.StateLoading,
		domainAttachment.StateCancelled, domainAttachment.StatePlaceholder,
	}, h.History())

	node.Dispatch("click")
	assert.Equal(t, domainAttachment.StateLoading, h.State())
	env.registry.resolve("d1")
	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
	assert.Nil(t, node.FindByClass("document-download"))
	assert.Equal(t, "/media/d1", node.Data("url"))
}

func TestWrapDocument_CancelInOneBubbleKeepsOtherDownloading(t *testing.T) {
	env := newTestEnv(t)
	env.registry.autoResolve = false

	doc := media.Descriptor{ID: "d4", Kind: media.KindDocument, FileName: "shared.zip", Size: 4096}
	first, err := env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{Doc: doc})
	require.NoError(t, err)
	second, err := env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{Doc: doc})
	require.NoError(t, err)

	first.Target.Dispatch("click")
	second.Target.Dispatch("click")
	assert.Equal(t, 2, env.registry.downloads("d4"))

	first.Target.Dispatch("click")
	env.drainUntil(t, func() bool { return first.State() == domainAttachment.StatePlaceholder })
	assert.Equal(t, domainAttachment.StateLoading, second.State())

	env.registry.resolve("d4")
	env.drainUntil(t, func() bool { return second.State() == domainAttachment.StateReady })
	assert.Equal(t, "/media/d4", second.Target.Data("url"))
	assert.Equal(t, domainAttachment.StatePlaceholder, first.State())
	assert.Empty(t, first.Target.Data("url"))
}

func TestWrapDocument_RevokedMidDownloadLeavesTargetUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.registry.autoResolve = false
	token := liveness.New()

	doc := media.Descriptor{ID: "d3", Kind: media.KindDocument, FileName: "slides.pdf", Size: 2048}
	h, err := env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{Doc: doc, Token: token})
	require.NoError(t, err)
	node := h.Target

	node.Dispatch("click")
	require.Equal(t, domainAttachment.StateLoading, h.State())
	before := node.String()

	token.Revoke()
	env.registry.resolve("d3")
	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateAborted })

	assert.Equal(t, before, node.String())
	assert.Empty(t, node.Data("url"))
	assert.NotNil(t, node.FindByClass("document-download"))
	assert.True(t, node.HasClass(classDownloading))
	assert.ErrorIs(t, h.Err(), media.ErrStaleCompletion)
}

func TestWrapDocument_WithTimeAndAudio(t *testing.T) {
	env := newTestEnv(t)
	date := time.Date(2024, time.March, 7, 9, 5, 0, 0, time.UTC)
	h, err := env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{
		Doc:      media.Descriptor{ID: "d2", Kind: media.KindDocument, FileName: "notes", Size: 1536, Date: date},
		WithTime: true,
	})
	require.NoError(t, err)
	assert.True(t, h.Target.HasClass("ext-file"))
	assert.Equal(t, "1.5 KB · March 7, 2024 at 9:05", h.Target.FindByClass("document-size").Text())

	h, err = env.svc.WrapDocument(context.Background(), domainAttachment.DocumentRequest{
		Doc: media.Descriptor{ID: "a1", Kind: media.KindVoice, Duration: 65}, MessageID: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "audio-element", h.Target.Tag())
	id, _ := h.Target.Attr("message-id")
	assert.Equal(t, "12", id)
	assert.Equal(t, "1:05", h.Target.Data("duration"))
	assert.Equal(t, domainAttachment.StateReady, h.State())
}

func TestWrapPoll(t *testing.T) {
	env := newTestEnv(t)
	n := env.svc.WrapPoll("p9", 44)
	assert.Equal(t, "poll-element", n.Tag())
	v, _ := n.Attr("poll-id")
	assert.Equal(t, "p9", v)
}

func photoDescriptor(id string) media.Descriptor {
	return media.Descriptor{
		ID: id, Kind: media.KindPhoto, W: 1280, H: 720,
		Thumbs: []media.Thumb{
			{Type: "i", W: 40, H: 22, Bytes: pngHeader},
			{Type: "m", W: 320, H: 180},
			{Type: "x", W: 800, H: 450},
		},
	}
}

func TestWrapPhoto_DownloadedTwiceSkipsQueueAndPreloader(t *testing.T) {
	env := newTestEnv(t)
	d := photoDescriptor("p1")
	env.registry.markDownloaded("p1_x")
	queue := &recordingQueue{}

	for i := 0; i < 2; i++ {
		container := rendertree.New(rendertree.KindDiv)
		h, err := env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
			Photo: d, Container: container, BoxWidth: 400, BoxHeight: 320, Queue: queue, Token: liveness.New(),
		})
		require.NoError(t, err)
		assert.Equal(t, domainAttachment.Immediate, h.Decision)

		env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
		assert.Empty(t, preloaders(container))
		imgs := images(container)
		require.Len(t, imgs, 1)
		assert.Equal(t, "/media/p1_x", imgs[0].Source())
		assert.Equal(t, "400px", container.Style("width"))
		assert.Equal(t, "225px", container.Style("height"))
	}
	assert.Empty(t, queue.tasks)
	assert.Empty(t, env.updates)
}

func TestWrapPhoto_NotDownloadedGoesThroughQueueAsSeen(t *testing.T) {
	env := newTestEnv(t)
	queue := &recordingQueue{}
	container := rendertree.New(rendertree.KindDiv)

	h, err := env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
		Photo: photoDescriptor("p2"), Container: container, BoxWidth: 400, BoxHeight: 320, Queue: queue,
	})
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	assert.True(t, queue.tasks[0].WasSeen)
	assert.Equal(t, domainAttachment.Immediate, h.Decision)

	imgs := images(container)
	require.Len(t, imgs, 1)
	assert.True(t, strings.HasPrefix(imgs[0].Source(), "data:"), "inline preview first")
}

func TestWrapPhoto_RevokedTokenLeavesTargetUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.registry.autoResolve = false
	container := rendertree.New(rendertree.KindDiv)
	token := liveness.New()

	h, err := env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
		Photo: photoDescriptor("p3"), Container: container, BoxWidth: 400, BoxHeight: 320, Token: token,
	})
	require.NoError(t, err)
	assert.Equal(t, domainAttachment.StateLoading, h.State())
	require.Len(t, preloaders(container), 1)

	token.Revoke()
	before := container.String()
	env.registry.resolve("p3_x")

	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateAborted })
	time.Sleep(20 * time.Millisecond)
	env.loop.Drain()

	assert.ErrorIs(t, h.Err(), media.ErrStaleCompletion)
	assert.Equal(t, before, container.String())
}

func TestWrapPhoto_TailGeometry(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)
	msg := &domainMessage.Message{ID: 77, IsOut: true}

	_, err := env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
		Photo: photoDescriptor("p4"), Message: msg, Container: container,
		BoxWidth: 400, BoxHeight: 320, WithTail: true, IsOut: true,
	})
	require.NoError(t, err)

	svg := container.FindKind(rendertree.KindSVG)
	require.Len(t, svg, 1)
	assert.True(t, svg[0].HasClass("is-out"))
	assert.Equal(t, "clip77", svg[0].Data("clip-id"))
	assert.Len(t, svg[0].FindKind(rendertree.KindUse), 1, "no text means a tail clip")
	assert.True(t, container.HasClass("with-tail"))
	assert.Equal(t, "391px", container.Style("width"))
}

func TestWrapPhoto_TailSkippedWithText(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)
	_, err := env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
		Photo: photoDescriptor("p5"), Message: &domainMessage.Message{ID: 1, Text: "caption"},
		Container: container, BoxWidth: 400, BoxHeight: 320, WithTail: true,
	})
	require.NoError(t, err)
	assert.Empty(t, container.FindKind(rendertree.KindUse))

	_, err = env.svc.WrapPhoto(context.Background(), domainAttachment.PhotoRequest{
		Photo: photoDescriptor("p6"), Container: rendertree.New(rendertree.KindDiv), WithTail: true,
	})
	assert.ErrorIs(t, err, media.ErrInvariantViolation)
}

func TestWrapVideo_GifSwapsOnCanPlay(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)
	doc := media.Descriptor{
		ID: "g1", Kind: media.KindGif, MimeType: "video/mp4", W: 320, H: 240,
		Thumbs: []media.Thumb{{Type: "i", W: 32, H: 24, Bytes: pngHeader}},
	}

	h, err := env.svc.WrapVideo(context.Background(), domainAttachment.VideoRequest{
		Doc: doc, Container: container, BoxWidth: 400, BoxHeight: 320, Group: "chat", Token: liveness.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "GIF", container.FindByClass("video-time").Text())

	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
	video := container.FindKind(rendertree.KindVideo)[0]
	assert.Equal(t, "/media/g1", video.Source())
	_, muted := video.Attr("muted")
	assert.True(t, muted)
	assert.Equal(t, "chat", video.Data("animation-group"))
	require.NotNil(t, container.FindByClass("thumbnail"))

	video.Dispatch("canplay")
	assert.Nil(t, container.FindByClass("thumbnail"))
}

func TestWrapVideo_StreamingRoundIsReadyImmediately(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)
	doc := media.Descriptor{
		ID: "r1", Kind: media.KindRound, SupportsStreaming: true, W: 240, H: 240,
		Locator: media.Locator{Location: media.LocationDocument, ID: "r1"},
	}

	h, err := env.svc.WrapVideo(context.Background(), domainAttachment.VideoRequest{Doc: doc, Container: container})
	require.NoError(t, err)
	assert.Equal(t, domainAttachment.StateReady, h.State())
	assert.Nil(t, container.FindByClass("video-time"))

	video := container.FindKind(rendertree.KindVideo)[0]
	assert.True(t, strings.HasPrefix(video.Source(), "/stream/"))
	assert.Equal(t, "circle", video.Data("ckin"))
	assert.Equal(t, 0, env.registry.downloads("r1"))
}

func TestWrapVideo_MessageBoundVideoUsesPhotoPath(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)
	doc := media.Descriptor{
		ID: "v9", Kind: media.KindVideo, Duration: 75, W: 640, H: 360,
		Thumbs: []media.Thumb{{Type: "m", W: 320, H: 180}},
	}
	h, err := env.svc.WrapVideo(context.Background(), domainAttachment.VideoRequest{
		Doc: doc, Container: container, Message: &domainMessage.Message{ID: 5, Text: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1:15", container.FindByClass("video-time").Text())
	assert.NotNil(t, container.FindByClass("video-play"))
	assert.Empty(t, container.FindKind(rendertree.KindVideo))

	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
	assert.Equal(t, "/media/v9_m", images(container)[0].Source())
}

func TestWrapAlbum_LaysOutItemsInIDOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.storage.On("GetGroupedMessageIDs", mock.Anything, "g1").Return([]int64{3, 1, 2}, nil)
	for _, id := range []int64{1, 2, 3} {
		d := photoDescriptor("ph" + string(rune('0'+id)))
		env.storage.On("GetMessage", mock.Anything, id).Return(domainMessage.Message{
			ID: id, GroupID: "g1", Media: &domainMessage.Media{Photo: &d},
		}, nil)
	}

	album := rendertree.New(rendertree.KindDiv)
	handles, err := env.svc.WrapAlbum(ctx, domainAttachment.AlbumRequest{GroupID: "g1", Container: album, Token: liveness.New()})
	require.NoError(t, err)
	require.Len(t, handles, 3)
	env.storage.AssertExpectations(t)

	items := album.Children()
	require.Len(t, items, 3)
	for i, item := range items {
		assert.True(t, item.HasClass("album-item"))
		assert.Equal(t, string(rune('1'+i)), item.Data("mid"))
		assert.LessOrEqual(t, item.Bounds().X+item.Bounds().Width, 420.0)
		assert.Empty(t, item.FindKind(rendertree.KindSVG), "album items have no tail")
	}
	assert.Equal(t, "inherit", items[0].Style("border-top-left-radius"))

	width, ok := parsePx(album.Style("width"))
	require.True(t, ok)
	assert.Equal(t, 420, width)

	env.drainUntil(t, func() bool {
		for _, h := range handles {
			if h.State() != domainAttachment.StateReady {
				return false
			}
		}
		return true
	})
}

func TestWrapAlbum_ItemsGetTheirOwnToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.storage.On("GetGroupedMessageIDs", mock.Anything, "g2").Return([]int64{4, 5}, nil)
	for _, id := range []int64{4, 5} {
		d := photoDescriptor("ph" + string(rune('0'+id)))
		env.storage.On("GetMessage", mock.Anything, id).Return(domainMessage.Message{
			ID: id, GroupID: "g2", Media: &domainMessage.Media{Photo: &d},
		}, nil)
	}

	albumToken := liveness.New()
	handles, err := env.svc.WrapAlbum(ctx, domainAttachment.AlbumRequest{
		GroupID: "g2", Container: rendertree.New(rendertree.KindDiv), Token: albumToken,
	})
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.NotSame(t, albumToken, handles[0].Token)
	assert.NotSame(t, handles[0].Token, handles[1].Token)

	handles[0].Token.Revoke()
	env.drainUntil(t, func() bool {
		return handles[0].State() == domainAttachment.StateAborted && handles[1].State() == domainAttachment.StateReady
	})
	assert.True(t, albumToken.IsAlive(), "revoking one item leaves the album alive")

	albumToken.Revoke()
	assert.False(t, handles[1].Token.IsAlive())
}

func TestWrapAlbum_RequiresGroup(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.WrapAlbum(context.Background(), domainAttachment.AlbumRequest{Container: rendertree.New(rendertree.KindDiv)})
	assert.ErrorIs(t, err, media.ErrInvariantViolation)

	env.storage.On("GetGroupedMessageIDs", mock.Anything, "broken").Return([]int64(nil), errors.New("db down"))
	_, err = env.svc.WrapAlbum(context.Background(), domainAttachment.AlbumRequest{GroupID: "broken", Container: rendertree.New(rendertree.KindDiv)})
	assert.EqualError(t, err, "db down")
}

func TestWrapReply_FlattensTextAndLoadsPreview(t *testing.T) {
	env := newTestEnv(t)
	d := media.Descriptor{
		ID: "rp", Kind: media.KindPhoto,
		Thumbs: []media.Thumb{{Type: "i", W: 8, H: 8, Bytes: pngHeader}, {Type: "s", W: 90, H: 90}},
	}
	h, err := env.svc.WrapReply(context.Background(), domainAttachment.ReplyRequest{
		Title:    "<b>Bob</b>",
		Subtitle: "hi<br>there",
		Message:  &domainMessage.Message{ID: 1, Media: &domainMessage.Media{Photo: &d}},
		IsPinned: true,
	})
	require.NoError(t, err)
	assert.True(t, h.Target.HasClass("pinned-message"))
	assert.Equal(t, "Bob", h.Target.FindByClass("pinned-message-title").Text())
	assert.Equal(t, "hi there", h.Target.FindByClass("pinned-message-subtitle").Text())
	assert.NotNil(t, h.Target.FindByClass("is-media"))

	env.drainUntil(t, func() bool { return h.State() == domainAttachment.StateReady })
	preview := h.Target.FindByClass("pinned-message-media")
	assert.Equal(t, "url(/media/rp_s)", preview.Style("background-image"))
	assert.Empty(t, preloaders(h.Target))
}

func TestWrapReply_TextOnly(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.svc.WrapReply(context.Background(), domainAttachment.ReplyRequest{Title: "Ann", Subtitle: "ok"})
	require.NoError(t, err)
	assert.True(t, h.Target.HasClass("reply"))
	assert.Equal(t, domainAttachment.StateReady, h.State())
}

func TestWrapMedia_Dispatch(t *testing.T) {
	env := newTestEnv(t)
	container := rendertree.New(rendertree.KindDiv)

	h, err := env.svc.WrapMedia(context.Background(), domainAttachment.MediaRequest{
		Doc:       media.Descriptor{ID: "d9", Kind: media.KindDocument, FileName: "a.zip", Size: 10},
		Container: container,
	})
	require.NoError(t, err)
	assert.Equal(t, h.Target, container.FirstChild())
	assert.True(t, h.Target.HasClass("ext-zip"))

	_, err = env.svc.WrapMedia(context.Background(), domainAttachment.MediaRequest{
		Doc: media.Descriptor{ID: "?", Kind: "hologram"}, Container: container,
	})
	assert.ErrorIs(t, err, media.ErrInvariantViolation)
}
