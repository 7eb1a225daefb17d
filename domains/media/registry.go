package media

import (
	"context"

	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
)

// IStateStore remembers fetch and conversion outcomes keyed by descriptor id.
// Downloaded is sticky: once set it is never cleared.
type IStateStore interface {
	Get(ctx context.Context, id string) (State, error)
	MarkDownloaded(ctx context.Context, id, url string) error
	MarkThumbConverted(ctx context.Context, id string, thumb []byte) error
}

// IRegistry is the document and photo registry the renderers fetch through.
type IRegistry interface {
	// Download fetches the descriptor, or the given thumb when thumb is non-nil, and
	// marks it downloaded on success. Concurrent calls for the same media share one fetch.
	Download(ctx context.Context, d Descriptor, thumb *Thumb) *future.Future[Resource]
	// CachedURL returns the URL of an already downloaded descriptor.
	CachedURL(ctx context.Context, d Descriptor) (string, bool)
	// ChoosePreviewSize picks the thumb best suited to a maxW x maxH box.
	ChoosePreviewSize(d Descriptor, maxW, maxH int) (Thumb, bool)
	// PreviewURL builds a data URL from inline thumb bytes.
	PreviewURL(t Thumb) string
	State(ctx context.Context, id string) State
	MarkThumbConverted(ctx context.Context, id string, thumb []byte)
}

// AnimationParams describes one vector animation decode.
type AnimationParams struct {
	Container *rendertree.Node
	Data      []byte
	Loop      bool
	Autoplay  bool
	Width     int
	Height    int
	Group     string
	ToneIndex int
	// Alive gates every mutation the decoder makes on Container.
	Alive func() bool
}

// Animation is a decoded vector animation bound to a container.
type Animation interface {
	// AddListener subscribes cb to event. "firstFrame" is sticky: subscribing after the
	// first frame was drawn still delivers it once.
	AddListener(event string, cb func(), once bool)
	Restart()
	Paused() bool
	Canvas() *rendertree.Node
}

// IDecoder is the decoding worker pool.
type IDecoder interface {
	// Warm starts the workers. It is safe to call repeatedly.
	Warm()
	Warmed() bool
	DecodeVectorAnimation(ctx context.Context, p AnimationParams) *future.Future[Animation]
	ConvertRasterThumbnail(ctx context.Context, id string, data []byte) *future.Future[[]byte]
	// Animation returns the animation currently bound to container, if any.
	Animation(container *rendertree.Node) (Animation, bool)
}

// IFetcher retrieves the bytes behind one kind of locator.
type IFetcher interface {
	Supports(loc Locator) bool
	// Fetch reports progress through onProgress; total is -1 when unknown.
	Fetch(ctx context.Context, loc Locator, onProgress func(loaded, total int64)) ([]byte, error)
}
