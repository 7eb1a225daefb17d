// Package imagebox fits media dimensions into bounding boxes.
package imagebox

// Size is a width and height in pixels.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether the size carries no dimensions.
func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// CalcImageInBox scales an image to fit a box while keeping its aspect ratio. With
// noZoom an image smaller than the box keeps its natural size.
func CalcImageInBox(imageW, imageH, boxW, boxH int, noZoom bool) Size {
	if imageW <= 0 || imageH <= 0 {
		return Size{W: boxW, H: boxH}
	}
	if noZoom && imageW < boxW && imageH < boxH {
		return Size{W: imageW, H: imageH}
	}

	w, h := boxW, boxH
	if float64(imageW)/float64(imageH) > float64(boxW)/float64(boxH) {
		h = imageH * boxW / imageW
	} else {
		w = imageW * boxH / imageH
		if w > boxW {
			h = h * boxW / w
			w = boxW
		}
	}
	return Size{W: w, H: h}
}

// ChoosePhotoSize walks sizes from smallest to largest and returns the index of the
// first one that fills the box along one axis, or the largest one seen. It returns -1
// when no size has dimensions.
func ChoosePhotoSize(sizes []Size, boxW, boxH int) int {
	best := -1
	for i, s := range sizes {
		if s.Empty() {
			continue
		}
		best = i
		fit := CalcImageInBox(s.W, s.H, boxW, boxH, true)
		if fit.W == boxW || fit.H == boxH {
			break
		}
	}
	return best
}
