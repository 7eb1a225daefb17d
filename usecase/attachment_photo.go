package usecase

import (
	"context"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/validations"
)

func (s *serviceAttachment) WrapPhoto(ctx context.Context, req domainAttachment.PhotoRequest) (*domainAttachment.Handle, error) {
	if err := validations.ValidatePhotoRequest(ctx, req); err != nil {
		return nil, err
	}
	d := req.Photo
	h := domainAttachment.NewHandle(d.Kind, req.Container, req.Token)

	boxW, boxH := req.BoxWidth, req.BoxHeight
	size := req.Size

	var image *rendertree.Node
	if req.WithTail {
		image = s.wrapMediaWithTail(d, req.Message, req.Container, boxW, boxH, req.IsOut)
	} else {
		if boxW > 0 && boxH > 0 {
			if chosen := s.setAttachmentSize(d, req.Container, boxW, boxH, false); size == nil {
				size = chosen
			}
		}
		image = lastImage(req.Container)
	}

	// Animated documents load whole; other documents only show their preview size.
	wholeFile := d.MimeType == "image/gif"
	if size == nil && !wholeFile {
		if boxW <= 0 || boxH <= 0 {
			boxW, boxH = s.cfg.RegularWidth, s.cfg.RegularHeight
		}
		if th, ok := s.registry.ChoosePreviewSize(d, boxW, boxH); ok {
			size = &th
		}
	}

	st := s.registry.State(ctx, d.Key(size))
	if !d.IsPhoto() || !st.Downloaded {
		if th, ok := d.InlineThumb(); ok {
			setAttachmentPreview(th.Bytes, image, false)
		}
	}

	if up := uploadPreloader(req.Message); up != nil {
		up.Attach(req.Container, false, nil, true)
		h.Ready()
		return h, nil
	}

	if size == nil && !wholeFile {
		// Nothing to fetch beyond the inline preview.
		h.Ready()
		return h, nil
	}

	load := func() lazyload.Waiter {
		if !begin(h) {
			return h
		}
		f := s.registry.Download(ctx, d, size)
		if !st.Downloaded {
			s.newPreloader(h.Token).Attach(req.Container, false, f, false)
		}
		await(s, f, func(res media.Resource, err error) {
			s.complete(h, err, func() {
				image.SetSource(res.URL)
			})
		})
		return h
	}

	s.schedule(h, req.Queue, st.Downloaded, true, load)
	return h, nil
}
