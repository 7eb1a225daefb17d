package whatsapp

import (
	"hash/fnv"
	"strings"

	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

const thumbInline = "i"

// MessageID maps a WhatsApp message to a numeric id that sorts by send time.
func MessageID(waID string, unixMilli int64) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(waID))
	return unixMilli*1000 + int64(h.Sum32()%1000)
}

// MessageFromEvent converts an incoming media message. Plain text messages are skipped.
func MessageFromEvent(evt *events.Message) (domainMessage.Message, bool) {
	if evt == nil || evt.Message == nil {
		return domainMessage.Message{}, false
	}
	m := evt.Message
	if inner := m.GetEphemeralMessage().GetMessage(); inner != nil {
		m = inner
	}
	if inner := m.GetViewOnceMessage().GetMessage(); inner != nil {
		m = inner
	}

	d, caption, ok := DescriptorFromProto(evt.Info.ID, m)
	if !ok {
		return domainMessage.Message{}, false
	}
	d.Date = evt.Info.Timestamp

	msg := domainMessage.Message{
		ID:      MessageID(evt.Info.ID, evt.Info.Timestamp.UnixMilli()),
		ChatID:  evt.Info.Chat.String(),
		GroupID: m.GetMessageContextInfo().GetMessageAssociation().GetParentMessageKey().GetID(),
		Text:    caption,
		IsOut:   evt.Info.IsFromMe,
		Date:    evt.Info.Timestamp,
		Media:   &domainMessage.Media{},
	}
	if d.IsPhoto() {
		msg.Media.Photo = &d
	} else {
		msg.Media.Document = &d
	}
	return msg, true
}

// DescriptorFromProto builds a media descriptor for the attachment carried by m.
func DescriptorFromProto(id string, m *waE2E.Message) (media.Descriptor, string, bool) {
	switch {
	case m.GetImageMessage() != nil:
		img := m.GetImageMessage()
		d := media.Descriptor{
			ID:       id,
			Kind:     media.KindPhoto,
			MimeType: img.GetMimetype(),
			Size:     int64(img.GetFileLength()),
			W:        int(img.GetWidth()),
			H:        int(img.GetHeight()),
			Thumbs:   inlineThumb(img.GetJPEGThumbnail()),
			Locator:  locator(id, media.LocationPhoto, "image", img),
		}
		return d, img.GetCaption(), true

	case m.GetPtvMessage() != nil, m.GetVideoMessage() != nil:
		v, kind := m.GetVideoMessage(), media.KindVideo
		if ptv := m.GetPtvMessage(); ptv != nil {
			v, kind = ptv, media.KindRound
		} else if v.GetGifPlayback() {
			kind = media.KindGif
		}
		d := media.Descriptor{
			ID:                id,
			Kind:              kind,
			MimeType:          v.GetMimetype(),
			Size:              int64(v.GetFileLength()),
			Duration:          int(v.GetSeconds()),
			W:                 int(v.GetWidth()),
			H:                 int(v.GetHeight()),
			Thumbs:            inlineThumb(v.GetJPEGThumbnail()),
			SupportsStreaming: v.GetStreamingSidecar() != nil,
			Locator:           locator(id, media.LocationDocument, "video", v),
		}
		return d, v.GetCaption(), true

	case m.GetAudioMessage() != nil:
		a := m.GetAudioMessage()
		kind := media.KindAudio
		if a.GetPTT() {
			kind = media.KindVoice
		}
		d := media.Descriptor{
			ID:       id,
			Kind:     kind,
			MimeType: a.GetMimetype(),
			Size:     int64(a.GetFileLength()),
			Duration: int(a.GetSeconds()),
			Locator:  locator(id, media.LocationDocument, "audio", a),
		}
		return d, "", true

	case m.GetStickerMessage() != nil:
		s := m.GetStickerMessage()
		d := media.Descriptor{
			ID:       id,
			Kind:     media.KindSticker,
			Sticker:  media.StickerStatic,
			MimeType: s.GetMimetype(),
			Size:     int64(s.GetFileLength()),
			W:        int(s.GetWidth()),
			H:        int(s.GetHeight()),
			Animated: s.GetIsAnimated(),
			Thumbs:   inlineThumb(s.GetPngThumbnail()),
			Locator:  locator(id, media.LocationDocument, "sticker", s),
		}
		return d, "", true

	case m.GetDocumentMessage() != nil:
		doc := m.GetDocumentMessage()
		name := doc.GetFileName()
		if strings.TrimSpace(name) == "" {
			name = doc.GetTitle()
		}
		d := media.Descriptor{
			ID:       id,
			Kind:     media.KindDocument,
			MimeType: doc.GetMimetype(),
			FileName: name,
			Size:     int64(doc.GetFileLength()),
			Thumbs:   inlineThumb(doc.GetJPEGThumbnail()),
			Locator:  locator(id, media.LocationDocument, "document", doc),
		}
		return d, doc.GetCaption(), true
	}
	return media.Descriptor{}, "", false
}

type encryptedMedia interface {
	GetDirectPath() string
	GetMediaKey() []byte
	GetFileSHA256() []byte
	GetFileEncSHA256() []byte
	GetFileLength() uint64
}

func locator(id string, kind media.LocationKind, mediaType string, m encryptedMedia) media.Locator {
	return media.Locator{
		Location: kind,
		ID:       id,
		WhatsApp: &media.WhatsAppLocator{
			MediaType:     mediaType,
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		},
	}
}

func inlineThumb(data []byte) []media.Thumb {
	if len(data) == 0 {
		return nil
	}
	return []media.Thumb{{Type: thumbInline, Bytes: data}}
}
