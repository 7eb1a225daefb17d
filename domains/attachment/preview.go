package attachment

import (
	"context"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
)

type LayoutRequest struct {
	Sizes     []layouter.Size `json:"sizes"`
	MaxWidth  int             `json:"max_width"`
	MinWidth  int             `json:"min_width"`
	Spacing   int             `json:"spacing"`
	MaxHeight int             `json:"max_height"`
}

type LayoutResponse struct {
	Items  []layouter.Item `json:"items"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Rows   int             `json:"rows"`
}

// RenderRequest renders one descriptor. When MessageID is set the message is loaded from
// storage and used for tails and upload state. Lazy renders are placed at OffsetY in the
// shared scroll view and wait there for the viewport.
type RenderRequest struct {
	Descriptor media.Descriptor `json:"descriptor"`
	MessageID  int64            `json:"message_id,omitempty"`
	BoxWidth   int              `json:"box_width"`
	BoxHeight  int              `json:"box_height"`
	WithTail   bool             `json:"with_tail"`
	IsOut      bool             `json:"is_out"`
	WithTime   bool             `json:"with_time"`
	Group      string           `json:"group,omitempty"`
	Lazy       bool             `json:"lazy"`
	OffsetY    int              `json:"offset_y"`
	WaitMillis int              `json:"wait_ms"`
}

// AlbumRenderRequest renders a grouped album. Lazy albums are placed at OffsetY in the
// shared scroll view; their items are released nearest the viewport first.
type AlbumRenderRequest struct {
	GroupID    string `json:"group_id"`
	IsOut      bool   `json:"is_out"`
	Lazy       bool   `json:"lazy"`
	OffsetY    int    `json:"offset_y"`
	WaitMillis int    `json:"wait_ms"`
}

type ReplyRenderRequest struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	MessageID  int64  `json:"message_id,omitempty"`
	IsPinned   bool   `json:"is_pinned"`
	WaitMillis int    `json:"wait_ms"`
}

type ScrollRequest struct {
	ScrollTop float64 `json:"scroll_top"`
	Height    float64 `json:"height,omitempty"`
}

// HandleStatus is the serializable view of a Handle.
type HandleStatus struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Decision string  `json:"decision"`
	State    State   `json:"state"`
	History  []State `json:"history"`
	Error    string  `json:"error,omitempty"`
}

func (h *Handle) Status() HandleStatus {
	st := HandleStatus{
		ID:       h.ID,
		Kind:     h.Kind,
		Decision: h.Decision.String(),
		State:    h.State(),
		History:  h.History(),
	}
	if err := h.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

type RenderResponse struct {
	RenderID string              `json:"render_id"`
	Handles  []HandleStatus      `json:"handles"`
	Tree     rendertree.Snapshot `json:"tree"`
}

type PreviewStats struct {
	Queue      lazyload.Stats         `json:"queue"`
	DecodePool decodeworker.PoolStats `json:"decode_pool"`
	Inflight   int                    `json:"inflight_downloads"`
	Renders    int                    `json:"live_renders"`
	ScrollTop  float64                `json:"scroll_top"`
}

// IPreviewUsecase drives the renderers from outside the UI loop.
type IPreviewUsecase interface {
	Layout(ctx context.Context, request LayoutRequest) (LayoutResponse, error)
	Render(ctx context.Context, request RenderRequest) (RenderResponse, error)
	RenderAlbum(ctx context.Context, request AlbumRenderRequest) (RenderResponse, error)
	RenderReply(ctx context.Context, request ReplyRenderRequest) (RenderResponse, error)
	// GetRender reports the current state of an earlier render.
	GetRender(ctx context.Context, renderID string) (RenderResponse, error)
	// Click dispatches a click on the render's first handle, e.g. to start a document download.
	Click(ctx context.Context, renderID string) (RenderResponse, error)
	// Revoke tears a render down; late completions are dropped.
	Revoke(ctx context.Context, renderID string) error
	Scroll(ctx context.Context, request ScrollRequest) (PreviewStats, error)
	Stats(ctx context.Context) (PreviewStats, error)
}
