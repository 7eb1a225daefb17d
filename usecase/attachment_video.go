package usecase

import (
	"context"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/timeutils"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/AzielCF/az-wrap/validations"
)

func (s *serviceAttachment) WrapVideo(ctx context.Context, req domainAttachment.VideoRequest) (*domainAttachment.Handle, error) {
	if err := validations.ValidateVideoRequest(ctx, req); err != nil {
		return nil, err
	}
	d := req.Doc

	if !req.NoInfo && d.Kind != media.KindRound {
		s.drawVideoInfo(d, req.Container)
	}

	if d.MimeType == "image/gif" || (d.Kind == media.KindVideo && req.Message != nil) {
		return s.WrapPhoto(ctx, domainAttachment.PhotoRequest{
			Photo:     d,
			Message:   req.Message,
			Container: req.Container,
			BoxWidth:  req.BoxWidth,
			BoxHeight: req.BoxHeight,
			WithTail:  req.WithTail,
			IsOut:     req.IsOut,
			Token:     req.Token,
			Queue:     req.Queue,
		})
	}

	h := domainAttachment.NewHandle(d.Kind, req.Container, req.Token)
	video := rendertree.New(rendertree.KindVideo)

	var thumb *rendertree.Node
	if req.WithTail {
		thumb = s.wrapMediaWithTail(d, req.Message, req.Container, req.BoxWidth, req.BoxHeight, req.IsOut)
		fo := thumb.Parent()
		if w, ok := fo.Attr("width"); ok {
			video.SetAttr("width", w)
		}
		if hh, ok := fo.Attr("height"); ok {
			video.SetAttr("height", hh)
		}
		fo.Append(video)
	} else {
		if req.BoxWidth > 0 && req.BoxHeight > 0 {
			s.setAttachmentSize(d, req.Container, req.BoxWidth, req.BoxHeight, false)
		}
		thumb = lastImage(req.Container)
		req.Container.Append(video)
	}
	thumb.AddClass("thumbnail")
	if th, ok := d.InlineThumb(); ok {
		preview := s.registry.PreviewURL(th)
		thumb.SetSource(preview)
		video.SetAttr("poster", preview)
	}

	if up := uploadPreloader(req.Message); up != nil {
		up.Attach(req.Container, false, nil, true)
		h.Ready()
		return h, nil
	}

	st := s.registry.State(ctx, d.Key(nil))
	load := func() lazyload.Waiter {
		if !begin(h) {
			return h
		}
		if !st.Downloaded && !d.SupportsStreaming {
			f := s.registry.Download(ctx, d, nil)
			s.newPreloader(h.Token).Attach(req.Container, true, f, false)
			await(s, f, func(res media.Resource, err error) {
				s.complete(h, err, func() {
					s.playVideo(h, d, req.Group, video, thumb, res.URL)
				})
			})
			return h
		}

		url, ok := s.registry.CachedURL(ctx, d)
		if !ok {
			url = utils.FileURL(utils.FileURLStream, d.Locator)
		}
		s.complete(h, nil, func() {
			s.playVideo(h, d, req.Group, video, thumb, url)
		})
		return h
	}

	s.schedule(h, req.Queue, st.Downloaded, false, load)
	return h, nil
}

func (s *serviceAttachment) drawVideoInfo(d media.Descriptor, container *rendertree.Node) {
	label := rendertree.New(rendertree.KindSpan).AddClass("video-time")
	if d.Kind == media.KindGif {
		label.SetText("GIF")
		container.Append(label)
		return
	}
	label.SetText(timeutils.FormatDuration(d.Duration, false))
	container.Append(label)
	if d.Kind == media.KindVideo {
		container.Append(rendertree.New(rendertree.KindSpan).AddClass("video-play", "tgico-largeplay", "btn-circle", "position-center"))
	}
}

// playVideo points video at url. The thumbnail stays until the first playable frame.
func (s *serviceAttachment) playVideo(h *domainAttachment.Handle, d media.Descriptor, group string, video, thumb *rendertree.Node, url string) {
	video.Once("canplay", func(rendertree.Event) {
		if !h.Token.IsAlive() {
			return
		}
		if p := thumb.Parent(); p != nil {
			p.Remove(thumb)
		}
	})

	switch d.Kind {
	case media.KindGif:
		video.SetAttr("muted", "").SetAttr("loop", "").SetAttr("autoplay", "")
		if group != "" {
			video.SetData("animation-group", group)
		}
	case media.KindRound:
		video.SetData("ckin", "circle")
		video.SetData("overlay", "1")
	}
	video.SetAttr("playsinline", "")
	video.SetSource(url)
}
