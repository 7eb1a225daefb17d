package decodeworker

import (
	"strconv"
	"sync"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
)

// Animation events.
const (
	EventFirstFrame = "firstFrame"
	EventEnded      = "ended"
	EventRestart    = "restart"
)

type animListener struct {
	cb   func()
	once bool
}

// Animation plays a decoded vector sticker into a canvas node. Tree mutations and
// listener calls happen on the UI loop.
type Animation struct {
	loop   *uiloop.Loop
	header AnimationHeader
	params media.AnimationParams
	canvas *rendertree.Node

	mu          sync.Mutex
	listeners   map[string][]*animListener
	firstFrame  bool
	paused      bool
	generation  int
	playedLoops int
}

func newAnimation(loop *uiloop.Loop, header AnimationHeader, p media.AnimationParams) *Animation {
	width, height := p.Width, p.Height
	if width <= 0 {
		width = header.Width
	}
	if height <= 0 {
		height = header.Height
	}

	canvas := rendertree.New(rendertree.KindCanvas).AddClass("rlottie")
	canvas.SetAttr("width", strconv.Itoa(width)).SetAttr("height", strconv.Itoa(height))
	canvas.SetData("frames", strconv.Itoa(header.Frames()))
	if p.Group != "" {
		canvas.SetData("group", p.Group)
	}
	if p.ToneIndex > 0 {
		canvas.SetData("tone", strconv.Itoa(p.ToneIndex))
	}

	return &Animation{
		loop:      loop,
		header:    header,
		params:    p,
		canvas:    canvas,
		listeners: make(map[string][]*animListener),
		paused:    true,
	}
}

func (a *Animation) alive() bool {
	return a.params.Alive == nil || a.params.Alive()
}

// Canvas returns the node frames are drawn into.
func (a *Animation) Canvas() *rendertree.Node { return a.canvas }

// Header returns the parsed lottie header.
func (a *Animation) Header() AnimationHeader { return a.header }

// Paused reports whether playback is stopped.
func (a *Animation) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// AddListener implements media.Animation. It must be called on the UI loop.
func (a *Animation) AddListener(event string, cb func(), once bool) {
	a.mu.Lock()
	replay := event == EventFirstFrame && a.firstFrame
	if !(replay && once) {
		a.listeners[event] = append(a.listeners[event], &animListener{cb: cb, once: once})
	}
	a.mu.Unlock()

	if replay {
		cb()
	}
}

func (a *Animation) emit(event string) {
	a.mu.Lock()
	ls := a.listeners[event]
	kept := ls[:0]
	run := make([]func(), 0, len(ls))
	for _, l := range ls {
		run = append(run, l.cb)
		if !l.once {
			kept = append(kept, l)
		}
	}
	a.listeners[event] = kept
	a.mu.Unlock()

	for _, cb := range run {
		cb()
	}
}

// mount attaches the canvas and draws the first frame. Runs on the UI loop.
func (a *Animation) mount() {
	if !a.alive() || a.params.Container == nil {
		return
	}
	a.params.Container.Append(a.canvas)
	a.drawFrame(0)

	a.mu.Lock()
	a.firstFrame = true
	a.mu.Unlock()
	a.emit(EventFirstFrame)

	if a.params.Autoplay {
		a.play()
	}
}

func (a *Animation) drawFrame(frame int) {
	a.canvas.SetData("frame", strconv.Itoa(frame))
}

func (a *Animation) play() {
	a.mu.Lock()
	a.paused = false
	a.generation++
	gen := a.generation
	a.mu.Unlock()

	if a.params.Loop {
		return
	}
	time.AfterFunc(a.header.Duration(), func() {
		a.loop.Post(func() { a.finish(gen) })
	})
}

func (a *Animation) finish(gen int) {
	a.mu.Lock()
	if gen != a.generation || a.paused {
		a.mu.Unlock()
		return
	}
	a.paused = true
	a.playedLoops++
	a.mu.Unlock()

	if !a.alive() {
		return
	}
	a.drawFrame(a.header.Frames() - 1)
	a.emit(EventEnded)
}

// Restart plays the animation again from its first frame.
func (a *Animation) Restart() {
	if !a.alive() {
		return
	}
	a.drawFrame(0)
	a.emit(EventRestart)
	a.play()
}

// PlayedLoops counts completed non-looping runs.
func (a *Animation) PlayedLoops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playedLoops
}
