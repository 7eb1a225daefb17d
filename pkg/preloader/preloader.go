// Package preloader draws the progress/cancel affordance shown over a loading attachment.
package preloader

import (
	"strconv"

	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ClassContainer     = "preloader-container"
	ClassCancel        = "preloader-cancel"
	ClassUpload        = "preloader-upload"
	ClassPath          = "preloader-path"
	ClassIndeterminate = "preloader-indeterminate"
)

// Trackable is an in-flight operation the preloader reflects. *future.Future satisfies it.
type Trackable interface {
	Done() <-chan struct{}
	Err() error
	Cancel()
	OnProgress(fn func(future.Progress))
}

// Update is published on every progress change and on detach.
type Update struct {
	PreloaderID string  `json:"preloader_id"`
	Percent     float64 `json:"percent"`
	Detached    bool    `json:"detached"`
	Cancelled   bool    `json:"cancelled"`
}

// Preloader owns one progress node and attaches it to at most one target at a time.
// Methods must be called on the UI loop.
type Preloader struct {
	id   string
	loop *uiloop.Loop

	node *rendertree.Node
	path *rendertree.Node

	target  *rendertree.Node
	tracked Trackable
	gen     uint64
	percent float64

	onUpdate  func(Update)
	onCancel  func()
	alive     func() bool
	cancelled bool
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithUpdateHook receives progress updates, e.g. to fan them out over a websocket.
func WithUpdateHook(fn func(Update)) Option {
	return func(p *Preloader) { p.onUpdate = fn }
}

// WithLiveness gates every asynchronous update of the target on alive.
func WithLiveness(alive func() bool) Option {
	return func(p *Preloader) { p.alive = alive }
}

// New builds a detached preloader. loop receives completion callbacks of tracked
// operations; with a nil loop they run on the completing goroutine.
func New(loop *uiloop.Loop, opts ...Option) *Preloader {
	p := &Preloader{
		id:   uuid.NewString(),
		loop: loop,
		node: rendertree.New(rendertree.KindDiv).AddClass(ClassContainer),
		path: rendertree.New(rendertree.KindDiv).AddClass(ClassPath),
	}
	p.node.Append(p.path)
	p.node.On("click", func(rendertree.Event) {
		if p.node.HasClass(ClassCancel) {
			p.Cancel()
		}
	})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID identifies the preloader in progress updates.
func (p *Preloader) ID() string { return p.id }

// Node returns the progress node.
func (p *Preloader) Node() *rendertree.Node { return p.node }

// Target returns the node the preloader is attached to, or nil.
func (p *Preloader) Target() *rendertree.Node { return p.target }

// Attached reports whether the preloader is drawn on a target.
func (p *Preloader) Attached() bool { return p.target != nil }

// Percent returns the last displayed percentage.
func (p *Preloader) Percent() float64 { return p.percent }

// OnCancel registers fn to run when the user cancels through the affordance.
func (p *Preloader) OnCancel(fn func()) {
	p.onCancel = fn
}

// Attach binds the preloader to target, replacing any other preloader already drawn
// there. With a tracked operation the node is indeterminate until progress arrives and
// detaches itself once the operation settles.
func (p *Preloader) Attach(target *rendertree.Node, showCancel bool, tracked Trackable, isUpload bool) {
	if target == nil {
		return
	}
	if p.target != nil && p.target != target {
		p.Detach()
	}

	for _, c := range target.Children() {
		if c != p.node && c.HasClass(ClassContainer) {
			target.Remove(c)
		}
	}

	p.gen++
	gen := p.gen
	p.cancelled = false
	p.node.ToggleClass(ClassCancel, showCancel)
	p.node.ToggleClass(ClassUpload, isUpload)
	if p.target != target {
		target.Append(p.node)
	}
	p.target = target
	p.tracked = tracked

	if tracked == nil {
		p.SetProgress(0)
		return
	}

	p.node.AddClass(ClassIndeterminate)
	p.path.SetData("progress", "0")
	p.percent = 0

	tracked.OnProgress(func(pr future.Progress) {
		p.post(func() {
			if p.gen != gen || !p.isAlive() {
				return
			}
			if pct := pr.Percent(); pct >= 0 {
				p.SetProgress(pct)
			}
		})
	})

	go func() {
		<-tracked.Done()
		p.post(func() {
			if p.gen != gen || !p.isAlive() {
				return
			}
			if tracked.Err() == nil {
				p.SetProgress(100)
			}
			p.Detach()
		})
	}()
}

// SetProgress updates the displayed percentage, clamped to 0..100.
func (p *Preloader) SetProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.percent = pct
	p.node.RemoveClass(ClassIndeterminate)
	p.path.SetData("progress", strconv.FormatFloat(pct, 'f', -1, 64))
	p.publish(Update{PreloaderID: p.id, Percent: pct})
}

// Cancel cancels the tracked operation and detaches.
func (p *Preloader) Cancel() {
	if p.target == nil || p.cancelled {
		return
	}
	p.cancelled = true
	logrus.Debugf("[PRELOADER] %s cancelled by user", p.id)

	if p.tracked != nil {
		p.tracked.Cancel()
	}
	if p.onCancel != nil {
		p.onCancel()
	}
	p.publish(Update{PreloaderID: p.id, Percent: p.percent, Cancelled: true})
	p.Detach()
}

// Detach removes the node from its target immediately.
func (p *Preloader) Detach() {
	if p.target == nil {
		return
	}
	p.target.Remove(p.node)
	p.target = nil
	p.tracked = nil
	p.gen++
	p.publish(Update{PreloaderID: p.id, Percent: p.percent, Detached: true})
}

func (p *Preloader) isAlive() bool {
	return p.alive == nil || p.alive()
}

func (p *Preloader) publish(u Update) {
	if p.onUpdate != nil {
		p.onUpdate(u)
	}
}

func (p *Preloader) post(fn func()) {
	if p.loop == nil {
		fn()
		return
	}
	p.loop.Post(fn)
}
