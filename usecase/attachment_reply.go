package usecase

import (
	"context"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/utils"
)

// WrapReply draws a quoted message. Text is synchronous; a media preview, when present,
// is fetched at low priority outside the queue and without a preloader.
func (s *serviceAttachment) WrapReply(ctx context.Context, req domainAttachment.ReplyRequest) (*domainAttachment.Handle, error) {
	prefix := "reply"
	if req.IsPinned {
		prefix = "pinned-message"
	}

	div := rendertree.New(rendertree.KindDiv).AddClass(prefix)
	border := rendertree.New(rendertree.KindDiv).AddClass(prefix + "-border")
	content := rendertree.New(rendertree.KindDiv).AddClass(prefix + "-content")
	title := rendertree.New(rendertree.KindDiv).AddClass(prefix + "-title").SetText(utils.PlainText(req.Title))
	subtitle := rendertree.New(rendertree.KindDiv).AddClass(prefix + "-subtitle").SetText(utils.PlainText(req.Subtitle))

	h := domainAttachment.NewHandle(domainAttachment.KindReply, div, req.Token)

	var d media.Descriptor
	var hasMedia bool
	if req.Message != nil {
		d, hasMedia = req.Message.Media.Descriptor()
	}
	hasMedia = hasMedia && (d.IsPhoto() || d.Kind == media.KindVideo || d.Kind == media.KindGif)

	if !hasMedia {
		content.Append(title, subtitle)
		div.Append(border, content)
		h.Ready()
		return h, nil
	}

	preview := rendertree.New(rendertree.KindDiv).AddClass(prefix + "-media")
	content.AddClass("is-media")
	content.Append(preview, title, subtitle)
	div.Append(border, content)

	if th, ok := d.InlineThumb(); ok {
		setAttachmentPreview(th.Bytes, preview, true)
	}

	size, ok := s.registry.ChoosePreviewSize(d, s.cfg.ReplyThumbSize, s.cfg.ReplyThumbSize)
	if !ok || size.Inline() {
		h.Ready()
		return h, nil
	}

	if !begin(h) {
		return h, nil
	}
	f := s.registry.Download(context.WithoutCancel(ctx), d, &size)
	await(s, f, func(res media.Resource, err error) {
		s.complete(h, err, func() {
			preview.SetStyle("background-image", "url("+res.URL+")")
		})
	})
	return h, nil
}
