package utils

import (
	"math"

	"github.com/dustin/go-humanize"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatBytes renders a size with binary (1024) steps, e.g. 5242880 -> "5 MB".
// Trailing zeros of the fraction are dropped.
func FormatBytes(bytes int64, decimals int) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	const k = 1024.0
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	value := float64(bytes) / math.Pow(k, float64(i))
	return humanize.FtoaWithDigits(value, decimals) + " " + byteUnits[i]
}
