package attachment

import (
	"context"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/liveness"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
)

// Kind is the render dispatch tag.
type Kind = media.Kind

// KindReply tags handles of reply and pinned-message previews.
const KindReply Kind = "reply"

// SchedulingDecision says whether a load starts now or waits for the queue.
type SchedulingDecision int

const (
	Immediate SchedulingDecision = iota
	Deferred
)

func (d SchedulingDecision) String() string {
	if d == Deferred {
		return "deferred"
	}
	return "immediate"
}

// Decide computes the scheduling decision once per render call. A load starts within the
// render call when the media is already downloaded, when there is no queue, or when the
// caller knows the target is on screen; otherwise it waits for the queue to release it.
func Decide(downloaded, wasSeen bool, queue Queue) SchedulingDecision {
	if downloaded || wasSeen || queue == nil {
		return Immediate
	}
	return Deferred
}

// Queue is the part of the lazy-load queue renderers use.
type Queue interface {
	Push(task lazyload.Task)
}

type VideoRequest struct {
	Doc       media.Descriptor
	Container *rendertree.Node
	Message   *message.Message
	BoxWidth  int
	BoxHeight int
	WithTail  bool
	IsOut     bool
	NoInfo    bool
	Group     string
	Token     *liveness.Token
	Queue     Queue
}

type PhotoRequest struct {
	Photo     media.Descriptor
	Message   *message.Message
	Container *rendertree.Node
	BoxWidth  int
	BoxHeight int
	WithTail  bool
	IsOut     bool
	Token     *liveness.Token
	Queue     Queue
	// Size is a preselected remote size; when nil it is chosen from the box.
	Size *media.Thumb
}

type StickerRequest struct {
	Doc       media.Descriptor
	Container *rendertree.Node
	Token     *liveness.Token
	Queue     Queue
	Group     string
	Play      bool
	OnlyThumb bool
	Emoji     string
	Width     int
	Height    int
	WithThumb bool
	Loop      bool
}

type DocumentRequest struct {
	Doc       media.Descriptor
	WithTime  bool
	Uploading bool
	MessageID int64
	Token     *liveness.Token
}

type AlbumRequest struct {
	GroupID   string
	Container *rendertree.Node
	Token     *liveness.Token
	Queue     Queue
	IsOut     bool
}

// MediaRequest renders any descriptor through the renderer for its kind.
type MediaRequest struct {
	Doc       media.Descriptor
	Message   *message.Message
	Container *rendertree.Node
	BoxWidth  int
	BoxHeight int
	WithTail  bool
	IsOut     bool
	WithTime  bool
	Group     string
	Token     *liveness.Token
	Queue     Queue
}

type ReplyRequest struct {
	Title    string
	Subtitle string
	Message  *message.Message
	IsPinned bool
	Token    *liveness.Token
}

// IAttachmentUsecase renders message attachments into render trees. Every method must be
// called on the UI loop.
type IAttachmentUsecase interface {
	// WrapMedia dispatches on req.Doc.Kind.
	WrapMedia(ctx context.Context, req MediaRequest) (*Handle, error)
	WrapVideo(ctx context.Context, req VideoRequest) (*Handle, error)
	WrapPhoto(ctx context.Context, req PhotoRequest) (*Handle, error)
	WrapSticker(ctx context.Context, req StickerRequest) (*Handle, error)
	WrapDocument(ctx context.Context, req DocumentRequest) (*Handle, error)
	WrapAudio(doc media.Descriptor, withTime bool, messageID int64) *rendertree.Node
	// WrapAlbum fills req.Container in place and returns once every item is scheduled.
	WrapAlbum(ctx context.Context, req AlbumRequest) ([]*Handle, error)
	WrapReply(ctx context.Context, req ReplyRequest) (*Handle, error)
	WrapPoll(pollID string, messageID int64) *rendertree.Node
}
