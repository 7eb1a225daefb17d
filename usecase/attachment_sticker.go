package usecase

import (
	"context"
	"fmt"
	"os"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/AzielCF/az-wrap/validations"
	"github.com/sirupsen/logrus"
)

func (s *serviceAttachment) WrapSticker(ctx context.Context, req domainAttachment.StickerRequest) (*domainAttachment.Handle, error) {
	if err := validations.ValidateStickerRequest(ctx, req); err != nil {
		return nil, err
	}
	d := req.Doc
	div := req.Container
	vector := d.Sticker == media.StickerVector

	width, height := req.Width, req.Height
	if req.Emoji == "" {
		if width <= 0 {
			width = s.cfg.StickerSize
		}
		if height <= 0 {
			height = s.cfg.StickerSize
		}
	}
	toneIndex := emojiToneIndex(req.Emoji)

	if vector && !s.decoder.Warmed() {
		s.decoder.Warm()
	}

	div.SetData("doc-id", d.ID)
	h := domainAttachment.NewHandle(media.KindSticker, div, req.Token)
	st := s.registry.State(ctx, d.Key(nil))

	th, hasThumb := d.InlineThumb()
	if hasThumb && div.FirstChild() == nil && (!st.Downloaded || vector || req.OnlyThumb) {
		s.drawStickerThumb(ctx, h, d, th, st, func(err error) {
			switch {
			case !req.OnlyThumb:
			case err != nil:
				h.Settle(err)
			default:
				s.complete(h, nil, nil)
			}
		})
	}
	if req.OnlyThumb {
		if !hasThumb {
			h.Settle(nil)
		}
		return h, nil
	}

	load := func() lazyload.Waiter {
		if !begin(h) {
			return h
		}
		f := s.registry.Download(ctx, d, nil)
		f.Then(func(res media.Resource, err error) {
			var data []byte
			if err == nil && vector {
				if data, err = os.ReadFile(res.Path); err != nil {
					err = fmt.Errorf("%w: %v", media.ErrDecodeFailure, err)
				}
			}
			s.post(func() {
				if err != nil || !vector {
					s.complete(h, err, func() { swapStaticSticker(div, res.URL) })
					return
				}
				s.mountAnimation(ctx, h, req, data, width, height, toneIndex)
			})
		})
		return h
	}

	wasSeen := req.Group == "chat" && !vector
	s.schedule(h, req.Queue, st.Downloaded, wasSeen, load)
	return h, nil
}

// drawStickerThumb draws the embedded thumbnail, converting it first when the host cannot
// draw WebP. drawn runs once the thumbnail is on screen or its conversion failed.
func (s *serviceAttachment) drawStickerThumb(ctx context.Context, h *domainAttachment.Handle, d media.Descriptor, th media.Thumb, st media.State, drawn func(error)) {
	div := h.Target
	if s.cfg.NativeWebP || st.ThumbConverted {
		data := th.Bytes
		if len(st.ConvertedThumb) > 0 {
			data = st.ConvertedThumb
		}
		div.Append(rendertree.New(rendertree.KindImage).SetSource(utils.DataURL(data)))
		drawn(nil)
		return
	}

	f := s.decoder.ConvertRasterThumbnail(ctx, d.ID, th.Bytes)
	f.Then(func(png []byte, err error) {
		if err == nil {
			s.registry.MarkThumbConverted(context.WithoutCancel(ctx), d.ID, png)
		}
	})
	await(s, f, func(png []byte, err error) {
		if err != nil {
			logrus.WithError(err).Warnf("[WRAPPERS] sticker thumb conversion for %s failed", d.ID)
			drawn(fmt.Errorf("%w: %v", media.ErrDecodeFailure, err))
			return
		}
		if !h.Token.IsAlive() {
			drawn(nil)
			return
		}
		if div.FirstChild() == nil {
			div.Append(rendertree.New(rendertree.KindImage).SetSource(utils.DataURL(png)))
		}
		drawn(nil)
	})
}

// mountAnimation decodes a vector sticker into the container. Its thumbnail goes away on
// the first drawn frame, never earlier.
func (s *serviceAttachment) mountAnimation(ctx context.Context, h *domainAttachment.Handle, req domainAttachment.StickerRequest, data []byte, width, height, toneIndex int) {
	div := h.Target
	f := s.decoder.DecodeVectorAnimation(ctx, media.AnimationParams{
		Container: div,
		Data:      data,
		Loop:      req.Loop,
		Autoplay:  req.Play,
		Width:     width,
		Height:    height,
		Group:     req.Group,
		ToneIndex: toneIndex,
		Alive:     h.Token.IsAlive,
	})
	await(s, f, func(anim media.Animation, err error) {
		s.complete(h, err, func() {
			anim.AddListener(decodeworker.EventFirstFrame, func() {
				if !h.Token.IsAlive() {
					return
				}
				if first := div.FirstChild(); first != nil && first.Kind() == rendertree.KindImage {
					div.Remove(first)
				} else {
					anim.Canvas().AddClass("fade-in")
				}
			}, true)

			if req.Emoji != "" {
				div.On("click", func(rendertree.Event) {
					if a, ok := s.decoder.Animation(div); ok && a.Paused() {
						a.Restart()
					}
				})
			}
		})
	})
}

// swapStaticSticker replaces whatever preview the container holds with the full image.
func swapStaticSticker(div *rendertree.Node, url string) {
	img := rendertree.New(rendertree.KindImage).SetSource(url)
	if div.FirstChild() != nil {
		img.AddClass("fade-in-transition")
	}
	for _, c := range div.Children() {
		if c.Kind() == rendertree.KindImage {
			div.Remove(c)
		}
	}
	div.Append(img)
}

// emojiToneIndex maps a Fitzpatrick skin tone modifier to 1..5. It is 0 for emoji without
// a modifier and -1 when there is no emoji.
func emojiToneIndex(emoji string) int {
	if emoji == "" {
		return -1
	}
	for _, r := range emoji {
		if r >= 0x1F3FB && r <= 0x1F3FF {
			return int(r-0x1F3FB) + 1
		}
	}
	return 0
}
