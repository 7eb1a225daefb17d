package lazyload

import (
	"sync"

	"github.com/AzielCF/az-wrap/pkg/rendertree"
)

// VisibilityTracker measures how far a node is from the visible area.
type VisibilityTracker interface {
	// Distance returns the vertical distance between node and the viewport (0 when they
	// overlap) and whether the node counts as visible, preload margin included.
	Distance(node *rendertree.Node) (float64, bool)
}

// ChangeNotifier is implemented by trackers that announce viewport changes.
type ChangeNotifier interface {
	OnChange(fn func())
}

// Viewport tracks a vertical scroll container over a root node's content space.
type Viewport struct {
	mu        sync.RWMutex
	scrollTop float64
	height    float64
	margin    float64
	listeners []func()
}

// NewViewport returns a viewport of the given height. margin extends the visible area
// above and below so loads start slightly before a node scrolls in.
func NewViewport(height, margin float64) *Viewport {
	if height < 0 {
		height = 0
	}
	if margin < 0 {
		margin = 0
	}
	return &Viewport{height: height, margin: margin}
}

// ScrollTo moves the viewport's top edge and notifies listeners.
func (v *Viewport) ScrollTo(y float64) {
	if y < 0 {
		y = 0
	}
	v.mu.Lock()
	changed := v.scrollTop != y
	v.scrollTop = y
	v.mu.Unlock()
	if changed {
		v.notify()
	}
}

// Resize changes the viewport height and notifies listeners.
func (v *Viewport) Resize(height float64) {
	if height < 0 {
		height = 0
	}
	v.mu.Lock()
	changed := v.height != height
	v.height = height
	v.mu.Unlock()
	if changed {
		v.notify()
	}
}

// ScrollTop returns the current scroll offset.
func (v *Viewport) ScrollTop() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scrollTop
}

// OnChange subscribes fn to scroll and resize changes.
func (v *Viewport) OnChange(fn func()) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

func (v *Viewport) notify() {
	v.mu.RLock()
	fns := append([]func(){}, v.listeners...)
	v.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// Distance implements VisibilityTracker. Nodes not attached to a root are never visible.
func (v *Viewport) Distance(node *rendertree.Node) (float64, bool) {
	if node == nil || !node.Connected() {
		return 0, false
	}

	b := node.AbsoluteBounds()
	top, bottom := b.Y, b.Y+b.Height

	v.mu.RLock()
	visibleTop := v.scrollTop
	visibleBottom := v.scrollTop + v.height
	margin := v.margin
	v.mu.RUnlock()

	var dist float64
	switch {
	case bottom < visibleTop:
		dist = visibleTop - bottom
	case top > visibleBottom:
		dist = top - visibleBottom
	}
	return dist, dist <= margin
}
