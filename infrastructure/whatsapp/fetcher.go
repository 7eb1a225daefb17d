package whatsapp

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-wrap/domains/media"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

// MediaFetcher downloads and decrypts WhatsApp media locators.
type MediaFetcher struct {
	client  *whatsmeow.Client
	maxSize uint64
}

var _ media.IFetcher = (*MediaFetcher)(nil)

func NewMediaFetcher(client *whatsmeow.Client, maxSize int64) *MediaFetcher {
	f := &MediaFetcher{client: client}
	if maxSize > 0 {
		f.maxSize = uint64(maxSize)
	}
	return f
}

func (f *MediaFetcher) Supports(loc media.Locator) bool {
	return f.client != nil && loc.WhatsApp != nil && loc.WhatsApp.DirectPath != ""
}

func (f *MediaFetcher) Fetch(ctx context.Context, loc media.Locator, onProgress func(loaded, total int64)) ([]byte, error) {
	wa := loc.WhatsApp
	if wa == nil {
		return nil, media.ErrNoLocator
	}
	if f.maxSize > 0 && wa.FileLength > f.maxSize {
		return nil, fmt.Errorf("media is %d bytes, limit is %d", wa.FileLength, f.maxSize)
	}

	msg, err := Downloadable(*wa)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(0, int64(wa.FileLength))
	}
	data, err := f.client.Download(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("whatsapp download: %w", err)
	}
	if onProgress != nil {
		onProgress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

// Downloadable rebuilds the proto message whatsmeow needs to fetch and decrypt a locator.
func Downloadable(wa media.WhatsAppLocator) (whatsmeow.DownloadableMessage, error) {
	switch wa.MediaType {
	case "image":
		return &waE2E.ImageMessage{
			DirectPath:    proto.String(wa.DirectPath),
			MediaKey:      wa.MediaKey,
			FileSHA256:    wa.FileSHA256,
			FileEncSHA256: wa.FileEncSHA256,
			FileLength:    proto.Uint64(wa.FileLength),
		}, nil
	case "video":
		return &waE2E.VideoMessage{
			DirectPath:    proto.String(wa.DirectPath),
			MediaKey:      wa.MediaKey,
			FileSHA256:    wa.FileSHA256,
			FileEncSHA256: wa.FileEncSHA256,
			FileLength:    proto.Uint64(wa.FileLength),
		}, nil
	case "audio":
		return &waE2E.AudioMessage{
			DirectPath:    proto.String(wa.DirectPath),
			MediaKey:      wa.MediaKey,
			FileSHA256:    wa.FileSHA256,
			FileEncSHA256: wa.FileEncSHA256,
			FileLength:    proto.Uint64(wa.FileLength),
		}, nil
	case "document":
		return &waE2E.DocumentMessage{
			DirectPath:    proto.String(wa.DirectPath),
			MediaKey:      wa.MediaKey,
			FileSHA256:    wa.FileSHA256,
			FileEncSHA256: wa.FileEncSHA256,
			FileLength:    proto.Uint64(wa.FileLength),
		}, nil
	case "sticker":
		return &waE2E.StickerMessage{
			DirectPath:    proto.String(wa.DirectPath),
			MediaKey:      wa.MediaKey,
			FileSHA256:    wa.FileSHA256,
			FileEncSHA256: wa.FileEncSHA256,
			FileLength:    proto.Uint64(wa.FileLength),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", media.ErrInvariantViolation, wa.MediaType)
	}
}
