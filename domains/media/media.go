package media

import (
	"time"

	"github.com/AzielCF/az-wrap/pkg/imagebox"
)

// Kind is the attachment category of a descriptor.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindGif      Kind = "gif"
	KindRound    Kind = "round"
	KindVoice    Kind = "voice"
	KindAudio    Kind = "audio"
	KindSticker  Kind = "sticker"
	KindDocument Kind = "document"
)

// StickerKind distinguishes the two sticker encodings. Zero means "not a sticker".
type StickerKind int

const (
	StickerNone   StickerKind = 0
	StickerStatic StickerKind = 1
	StickerVector StickerKind = 2
)

// Thumb is either an inline preview (Bytes set) or a reference to a remote size.
type Thumb struct {
	Type  string `json:"type"`
	W     int    `json:"w"`
	H     int    `json:"h"`
	Bytes []byte `json:"bytes,omitempty"`
}

// Size returns the thumb dimensions.
func (t Thumb) Size() imagebox.Size { return imagebox.Size{W: t.W, H: t.H} }

// Inline reports whether the thumb carries its own preview bytes.
func (t Thumb) Inline() bool { return len(t.Bytes) > 0 }

// LocationKind selects how a locator maps to a cache file name.
type LocationKind string

const (
	LocationPhoto           LocationKind = "photo"
	LocationDocument        LocationKind = "document"
	LocationPeerPhoto       LocationKind = "peerPhoto"
	LocationStickerSetThumb LocationKind = "stickerSetThumb"
	LocationFile            LocationKind = "file"
)

// WhatsAppLocator addresses end-to-end encrypted WhatsApp media.
type WhatsAppLocator struct {
	MediaType     string `json:"media_type"`
	DirectPath    string `json:"direct_path"`
	MediaKey      []byte `json:"media_key"`
	FileSHA256    []byte `json:"file_sha256"`
	FileEncSHA256 []byte `json:"file_enc_sha256"`
	FileLength    uint64 `json:"file_length"`
}

// Locator is the opaque remote address used to build fetch requests.
type Locator struct {
	Location     LocationKind     `json:"location"`
	ID           string           `json:"id,omitempty"`
	ThumbSize    string           `json:"thumb_size,omitempty"`
	Big          bool             `json:"big,omitempty"`
	StickerSet   string           `json:"sticker_set,omitempty"`
	ThumbVersion int              `json:"thumb_version,omitempty"`
	VolumeID     int64            `json:"volume_id,omitempty"`
	LocalID      int64            `json:"local_id,omitempty"`
	URL          string           `json:"url,omitempty"`
	WhatsApp     *WhatsAppLocator `json:"whatsapp,omitempty"`
}

// Descriptor identifies one attachment. It is a value object: fetch and conversion
// outcomes live in the registry's state store, never on the descriptor.
type Descriptor struct {
	ID                string      `json:"id"`
	Kind              Kind        `json:"kind"`
	Sticker           StickerKind `json:"sticker,omitempty"`
	MimeType          string      `json:"mime_type,omitempty"`
	FileName          string      `json:"file_name,omitempty"`
	Size              int64       `json:"size"`
	Duration          int         `json:"duration,omitempty"`
	W                 int         `json:"w,omitempty"`
	H                 int         `json:"h,omitempty"`
	Date              time.Time   `json:"date"`
	Thumbs            []Thumb     `json:"thumbs,omitempty"`
	SupportsStreaming bool        `json:"supports_streaming,omitempty"`
	Animated          bool        `json:"animated,omitempty"`
	Locator           Locator     `json:"locator"`
}

// IsPhoto reports whether the descriptor is a photo rather than a document-like object.
func (d Descriptor) IsPhoto() bool { return d.Kind == KindPhoto }

// Dimensions returns the natural size, falling back to the largest thumb.
func (d Descriptor) Dimensions() imagebox.Size {
	if d.W > 0 && d.H > 0 {
		return imagebox.Size{W: d.W, H: d.H}
	}
	var best imagebox.Size
	for _, t := range d.Thumbs {
		if t.W*t.H > best.W*best.H {
			best = t.Size()
		}
	}
	return best
}

// InlineThumb returns the first thumb with embedded bytes.
func (d Descriptor) InlineThumb() (Thumb, bool) {
	for _, t := range d.Thumbs {
		if t.Inline() {
			return t, true
		}
	}
	return Thumb{}, false
}

// State is what the pipeline remembers about a descriptor across renders.
type State struct {
	Downloaded     bool   `json:"downloaded"`
	URL            string `json:"url,omitempty"`
	ThumbConverted bool   `json:"thumb_converted"`
	ConvertedThumb []byte `json:"converted_thumb,omitempty"`
}

// Resource is a fetched media file.
type Resource struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Key returns the content address of d, or of one of its remote thumbs.
func (d Descriptor) Key(thumb *Thumb) string {
	if thumb != nil && thumb.Type != "" {
		return d.ID + "_" + thumb.Type
	}
	return d.ID
}
