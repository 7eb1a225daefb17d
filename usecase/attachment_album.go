package usecase

import (
	"context"
	"errors"
	"slices"
	"strconv"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/validations"
	"github.com/sirupsen/logrus"
)

type albumEntry struct {
	msg  domainMessage.Message
	doc  media.Descriptor
	size *media.Thumb
}

func (s *serviceAttachment) WrapAlbum(ctx context.Context, req domainAttachment.AlbumRequest) ([]*domainAttachment.Handle, error) {
	if err := validations.ValidateAlbumRequest(ctx, req); err != nil {
		return nil, err
	}

	ids, err := s.storage.GetGroupedMessageIDs(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)

	entries := make([]albumEntry, 0, len(ids))
	sizes := make([]layouter.Size, 0, len(ids))
	for _, id := range ids {
		msg, err := s.storage.GetMessage(ctx, id)
		if errors.Is(err, domainMessage.ErrMessageNotFound) {
			logrus.Warnf("[WRAPPERS] album %s references missing message %d", req.GroupID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		d, ok := msg.Media.Descriptor()
		if !ok {
			continue
		}

		e := albumEntry{msg: msg, doc: d}
		dims := d.Dimensions()
		if d.IsPhoto() {
			box := s.cfg.AlbumPreviewBox
			if th, ok := s.registry.ChoosePreviewSize(d, box, box); ok {
				e.size = &th
				if !th.Size().Empty() {
					dims = th.Size()
				}
			}
		}
		entries = append(entries, e)
		sizes = append(sizes, layouter.Size{W: float64(dims.W), H: float64(dims.H)})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	cfg := layouter.DefaultConfig()
	if s.cfg.AlbumWidth > 0 {
		cfg.MaxWidth = s.cfg.AlbumWidth
	}
	if s.cfg.AlbumMinWidth > 0 {
		cfg.MinWidth = s.cfg.AlbumMinWidth
	}
	cfg.Spacing = s.cfg.AlbumSpacing
	items := layouter.Layout(sizes, cfg)

	req.Container.SetStyle("width", px(layouter.TotalWidth(items)))
	req.Container.SetStyle("height", px(layouter.TotalHeight(items)))

	handles := make([]*domainAttachment.Handle, 0, len(entries))
	for i, e := range entries {
		g := items[i].Geometry
		div := rendertree.New(rendertree.KindDiv).AddClass("album-item")
		div.SetData("mid", strconv.FormatInt(e.msg.ID, 10))
		div.SetStyle("width", px(g.Width))
		div.SetStyle("height", px(g.Height))
		div.SetStyle("top", px(g.Y))
		div.SetStyle("left", px(g.X))
		div.SetBounds(rendertree.Rect{X: float64(g.X), Y: float64(g.Y), Width: float64(g.Width), Height: float64(g.Height)})
		inheritCorners(div, items[i].Sides)
		req.Container.Append(div)

		msg := e.msg
		token := req.Token.Child()
		var h *domainAttachment.Handle
		if e.doc.IsPhoto() {
			h, err = s.WrapPhoto(ctx, domainAttachment.PhotoRequest{
				Photo:     e.doc,
				Message:   &msg,
				Container: div,
				IsOut:     req.IsOut,
				Token:     token,
				Queue:     req.Queue,
				Size:      e.size,
			})
		} else {
			h, err = s.WrapVideo(ctx, domainAttachment.VideoRequest{
				Doc:       e.doc,
				Container: div,
				Message:   &msg,
				IsOut:     req.IsOut,
				Token:     token,
				Queue:     req.Queue,
			})
		}
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// inheritCorners lets items on the album edge follow the bubble's rounded corners.
func inheritCorners(div *rendertree.Node, sides layouter.Sides) {
	corners := []struct {
		sides layouter.Sides
		prop  string
	}{
		{layouter.SideTop | layouter.SideLeft, "border-top-left-radius"},
		{layouter.SideTop | layouter.SideRight, "border-top-right-radius"},
		{layouter.SideBottom | layouter.SideLeft, "border-bottom-left-radius"},
		{layouter.SideBottom | layouter.SideRight, "border-bottom-right-radius"},
	}
	for _, c := range corners {
		if sides.Has(c.sides) {
			div.SetStyle(c.prop, "inherit")
		}
	}
}
