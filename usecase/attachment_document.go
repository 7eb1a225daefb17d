package usecase

import (
	"context"
	"strconv"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/timeutils"
	"github.com/AzielCF/az-wrap/pkg/utils"
)

const classDownloading = "downloading"

func (s *serviceAttachment) WrapDocument(ctx context.Context, req domainAttachment.DocumentRequest) (*domainAttachment.Handle, error) {
	d := req.Doc
	if d.Kind == media.KindAudio || d.Kind == media.KindVoice {
		h := domainAttachment.NewHandle(d.Kind, s.WrapAudio(d, req.WithTime, req.MessageID), req.Token)
		h.Ready()
		return h, nil
	}

	ext := utils.FileExtension(d.FileName)
	docDiv := rendertree.New(rendertree.KindDiv).AddClass("document", "ext-"+ext)
	h := domainAttachment.NewHandle(media.KindDocument, docDiv, req.Token)

	ico := rendertree.New(rendertree.KindDiv).AddClass("document-ico")
	if th, ok := d.InlineThumb(); ok || len(d.Thumbs) > 0 {
		docDiv.AddClass("photo")
		if ok {
			setAttachmentPreview(th.Bytes, ico, true)
		}
	} else {
		ico.SetText(ext)
	}

	name := rendertree.New(rendertree.KindDiv).AddClass("document-name").SetText(d.FileName)

	sizeLabel := utils.FormatBytes(d.Size, 1)
	if req.WithTime {
		sizeLabel += " · " + timeutils.FormatDate(d.Date, false, true)
	}
	size := rendertree.New(rendertree.KindDiv).AddClass("document-size").SetText(sizeLabel)

	docDiv.Append(ico, name, size)
	docDiv.SetData("doc-id", d.ID)
	if req.MessageID != 0 {
		docDiv.SetData("mid", strconv.FormatInt(req.MessageID, 10))
	}

	if req.Uploading {
		h.Settle(nil)
		return h, nil
	}

	if url, ok := s.registry.CachedURL(ctx, d); ok {
		docDiv.SetData("url", url)
		h.Ready()
		return h, nil
	}

	download := rendertree.New(rendertree.KindDiv).AddClass("document-download")
	download.Append(rendertree.New(rendertree.KindDiv).AddClass("tgico-download"))
	ico.Append(download)

	// Downloads outlive the render call.
	dctx := context.WithoutCancel(ctx)
	var pending *future.Future[media.Resource]

	docDiv.On("click", func(rendertree.Event) {
		if pending != nil {
			if !pending.Settled() {
				pending.Cancel()
			}
			return
		}
		if h.State() == domainAttachment.StateReady || !begin(h) {
			return
		}

		f := s.registry.Download(dctx, d, nil)
		pending = f
		docDiv.AddClass(classDownloading)
		s.newPreloader(h.Token).Attach(download, true, f, false)

		await(s, f, func(res media.Resource, err error) {
			pending = nil
			if h.Token.IsAlive() {
				docDiv.RemoveClass(classDownloading)
			}
			s.complete(h, err, func() {
				ico.Remove(download)
				docDiv.SetData("url", res.URL)
			})
		})
	})

	return h, nil
}

func (s *serviceAttachment) WrapAudio(doc media.Descriptor, withTime bool, messageID int64) *rendertree.Node {
	el := rendertree.NewCustom("audio-element")
	el.SetAttr("doc-id", doc.ID)
	el.SetAttr("with-time", strconv.FormatBool(withTime))
	el.SetAttr("message-id", strconv.FormatInt(messageID, 10))
	if doc.Duration > 0 {
		el.SetData("duration", timeutils.FormatDuration(doc.Duration, false))
	}
	if doc.Kind == media.KindVoice {
		el.AddClass("is-voice")
	}
	return el
}

func (s *serviceAttachment) WrapPoll(pollID string, messageID int64) *rendertree.Node {
	el := rendertree.NewCustom("poll-element")
	el.SetAttr("poll-id", pollID)
	el.SetAttr("message-id", strconv.FormatInt(messageID, 10))
	return el
}
