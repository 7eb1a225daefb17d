package utils

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// FileURLType is the first path segment of a media file URL.
type FileURLType string

const (
	FileURLPhoto    FileURLType = "photo"
	FileURLThumb    FileURLType = "thumb"
	FileURLDocument FileURLType = "document"
	FileURLStream   FileURLType = "stream"
	FileURLDownload FileURLType = "download"
)

// FileNameByLocation returns the cache file name a locator is stored under.
func FileNameByLocation(loc media.Locator, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	switch loc.Location {
	case media.LocationPhoto, media.LocationDocument:
		thumb := ""
		if loc.ThumbSize != "" {
			thumb = "_" + loc.ThumbSize
		}
		return loc.ID + thumb + ext
	case media.LocationPeerPhoto:
		size := "small"
		if loc.Big {
			size = "big"
		}
		return strings.Join([]string{"peerPhoto", loc.ID, size}, "_")
	case media.LocationStickerSetThumb:
		return strings.Join([]string{"stickerSetThumb", loc.StickerSet, strconv.Itoa(loc.ThumbVersion)}, "_")
	case media.LocationFile:
		return strconv.FormatInt(loc.VolumeID, 10) + "_" + strconv.FormatInt(loc.LocalID, 10) + ext
	default:
		logrus.Warnf("[MEDIASTORE] Unrecognized location kind %q", loc.Location)
		return ""
	}
}

// FileURL encodes options as JSON into a /<type>/<options> path.
func FileURL(kind FileURLType, options any) string {
	raw, err := json.Marshal(options)
	if err != nil {
		return "/" + string(kind) + "/"
	}
	encoded := strings.ReplaceAll(url.QueryEscape(string(raw)), "+", "%20")
	return "/" + string(kind) + "/" + encoded
}

// DataURL embeds data in a data: URL using its sniffed mime type.
func DataURL(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	mt := mimetype.Detect(data)
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ExtensionFor returns the file extension (with dot) for data, falling back to the
// extension registered for mimeType.
func ExtensionFor(data []byte, mimeType string) string {
	if len(data) > 0 {
		if ext := mimetype.Detect(data).Extension(); ext != "" {
			return ext
		}
	}
	if mimeType != "" {
		if mt := mimetype.Lookup(mimeType); mt != nil {
			return mt.Extension()
		}
	}
	return ""
}

// FileExtension returns the lower case extension of name without the dot, or "file".
func FileExtension(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return "file"
	}
	return strings.ToLower(parts[len(parts)-1])
}
