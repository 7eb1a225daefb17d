package decodeworker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// maxAnimationSize bounds the inflated size of a vector sticker.
const maxAnimationSize = 16 << 20

// AnimationHeader is the part of a lottie document the pool validates and schedules by.
type AnimationHeader struct {
	Version   string            `json:"v"`
	Name      string            `json:"nm"`
	FrameRate float64           `json:"fr"`
	InPoint   float64           `json:"ip"`
	OutPoint  float64           `json:"op"`
	Width     int               `json:"w"`
	Height    int               `json:"h"`
	Layers    []json.RawMessage `json:"layers"`
}

// Frames returns the number of frames in one loop.
func (h AnimationHeader) Frames() int {
	return int(h.OutPoint - h.InPoint)
}

// Duration returns the length of one loop.
func (h AnimationHeader) Duration() time.Duration {
	return time.Duration(float64(h.Frames()) / h.FrameRate * float64(time.Second))
}

var errEmptyAnimation = errors.New("empty animation payload")

// ParseAnimation inflates gzip packed stickers and validates the lottie header.
func ParseAnimation(data []byte) (AnimationHeader, error) {
	var h AnimationHeader
	if len(data) == 0 {
		return h, errEmptyAnimation
	}

	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return h, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()

		inflated, err := io.ReadAll(io.LimitReader(zr, maxAnimationSize+1))
		if err != nil {
			return h, fmt.Errorf("inflate: %w", err)
		}
		if len(inflated) > maxAnimationSize {
			return h, fmt.Errorf("animation exceeds %d bytes", maxAnimationSize)
		}
		data = inflated
	}

	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("parse lottie: %w", err)
	}
	switch {
	case h.FrameRate <= 0:
		return h, fmt.Errorf("invalid frame rate %v", h.FrameRate)
	case h.OutPoint <= h.InPoint:
		return h, fmt.Errorf("invalid frame range %v..%v", h.InPoint, h.OutPoint)
	case h.Width <= 0 || h.Height <= 0:
		return h, fmt.Errorf("invalid size %dx%d", h.Width, h.Height)
	}
	return h, nil
}
