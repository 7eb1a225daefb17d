package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 Bytes", FormatBytes(0, 2))
	assert.Equal(t, "512 Bytes", FormatBytes(512, 2))
	assert.Equal(t, "1.5 KB", FormatBytes(1536, 2))
	assert.Equal(t, "5 MB", FormatBytes(5242880, 2))
	assert.Equal(t, "1.17 GB", FormatBytes(1256277934, 2))
}

func TestFileNameByLocation(t *testing.T) {
	assert.Equal(t, "123_m", FileNameByLocation(media.Locator{Location: media.LocationPhoto, ID: "123", ThumbSize: "m"}, ""))
	assert.Equal(t, "77.pdf", FileNameByLocation(media.Locator{Location: media.LocationDocument, ID: "77"}, "pdf"))
	assert.Equal(t, "peerPhoto_9_big", FileNameByLocation(media.Locator{Location: media.LocationPeerPhoto, ID: "9", Big: true}, ""))
	assert.Equal(t, "stickerSetThumb_cats_3", FileNameByLocation(media.Locator{Location: media.LocationStickerSetThumb, StickerSet: "cats", ThumbVersion: 3}, ""))
	assert.Equal(t, "10_20.jpg", FileNameByLocation(media.Locator{Location: media.LocationFile, VolumeID: 10, LocalID: 20}, ".jpg"))
	assert.Equal(t, "", FileNameByLocation(media.Locator{}, ""))
}

func TestFileURL(t *testing.T) {
	u := FileURL(FileURLDocument, map[string]string{"id": "a b"})
	assert.True(t, strings.HasPrefix(u, "/document/"))
	assert.Contains(t, u, "%20")
	assert.NotContains(t, u, "+")
}

func TestDataURLAndExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.True(t, strings.HasPrefix(DataURL(png), "data:image/png;base64,"))
	assert.Equal(t, "", DataURL(nil))
	assert.Equal(t, ".png", ExtensionFor(png, ""))
	assert.Equal(t, ".pdf", ExtensionFor(nil, "application/pdf"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "pdf", FileExtension("report.PDF"))
	assert.Equal(t, "gz", FileExtension("archive.tar.gz"))
	assert.Equal(t, "file", FileExtension("README"))
	assert.Equal(t, "file", FileExtension(""))
}

func TestGetPersistentServerID(t *testing.T) {
	assert.Equal(t, "fixed", GetPersistentServerID("fixed", t.TempDir()))

	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte("azwrap-saved\n"), 0644))
	assert.Equal(t, "azwrap-saved", GetPersistentServerID("", dir))
}

func TestSanitizeHostname(t *testing.T) {
	assert.Equal(t, "web-01_eu", sanitizeHostname("web-01_eu"))
	assert.Equal(t, "hostexamplecom", sanitizeHostname("host.example.com"))
	assert.Equal(t, "", sanitizeHostname("..."))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello world", PlainText("Hello   world"))
	assert.Equal(t, "Photo caption", PlainText("<i>Photo</i><br>caption"))
	assert.Equal(t, "fun 😀 times", PlainText(`fun <img class="emoji" alt="😀" src="x.png"> times`))
	assert.Equal(t, "a & b", PlainText("a &amp; b"))
}
