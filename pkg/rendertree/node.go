// Package rendertree is an in-memory retained render tree. Renderers draw into it the way
// a browser client draws into the DOM, and hosts read it back as JSON snapshots.
//
// A tree is not safe for concurrent use. Every mutation happens on the UI loop.
package rendertree

import (
	"encoding/json"
	"sort"
	"strings"
	"sync/atomic"
)

// ID uniquely identifies a node for the lifetime of the process.
type ID uint64

var nextID atomic.Uint64

func newID() ID {
	return ID(nextID.Add(1))
}

// Kind identifies the type of node for rendering.
type Kind string

const (
	KindDiv           Kind = "div"
	KindSpan          Kind = "span"
	KindImage         Kind = "img"
	KindVideo         Kind = "video"
	KindCanvas        Kind = "canvas"
	KindSVG           Kind = "svg"
	KindDefs          Kind = "defs"
	KindClipPath      Kind = "clipPath"
	KindUse           Kind = "use"
	KindForeignObject Kind = "foreignObject"
	KindCustom        Kind = "custom"
)

// Rect is a node's box relative to its parent.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type listener struct {
	fn   func(Event)
	once bool
	off  bool
}

// Event is delivered to listeners registered with On.
type Event struct {
	Type   string
	Target *Node
}

// Node is one element of the render tree.
type Node struct {
	id   ID
	kind Kind
	tag  string

	parent   *Node
	children []*Node

	classes []string
	attrs   map[string]string
	style   map[string]string
	data    map[string]string
	text    string
	src     string
	bounds  Rect
	root    bool

	listeners map[string][]*listener
}

// New creates a detached node.
func New(kind Kind) *Node {
	return &Node{id: newID(), kind: kind, tag: string(kind)}
}

// NewCustom creates a custom element node such as "poll-element" or "audio-element".
func NewCustom(tag string) *Node {
	n := New(KindCustom)
	n.tag = tag
	return n
}

// NewRoot creates a node that counts as attached to a live document.
func NewRoot() *Node {
	n := New(KindDiv)
	n.root = true
	return n
}

func (n *Node) ID() ID        { return n.id }
func (n *Node) Kind() Kind    { return n.kind }
func (n *Node) Tag() string   { return n.tag }
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

func (n *Node) LastChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[len(n.children)-1]
}

// Append moves child to the end of n's children.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.Detach()
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// Prepend moves child to the front of n's children.
func (n *Node) Prepend(child *Node) *Node {
	if child == nil {
		return n
	}
	child.Detach()
	child.parent = n
	n.children = append([]*Node{child}, n.children...)
	return n
}

// Remove detaches child if it is a direct child of n.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

// Clear removes every child.
func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// Connected reports whether n hangs off a root node.
func (n *Node) Connected() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.root {
			return true
		}
	}
	return false
}

func (n *Node) AddClass(classes ...string) *Node {
	for _, c := range classes {
		if c != "" && !n.HasClass(c) {
			n.classes = append(n.classes, c)
		}
	}
	return n
}

func (n *Node) RemoveClass(class string) *Node {
	for i, c := range n.classes {
		if c == class {
			n.classes = append(n.classes[:i], n.classes[i+1:]...)
			break
		}
	}
	return n
}

// ToggleClass adds or removes class and returns whether it is now present.
func (n *Node) ToggleClass(class string, on bool) bool {
	if on {
		n.AddClass(class)
	} else {
		n.RemoveClass(class)
	}
	return on
}

func (n *Node) HasClass(class string) bool {
	for _, c := range n.classes {
		if c == class {
			return true
		}
	}
	return false
}

// ClassName returns the space separated class list.
func (n *Node) ClassName() string {
	return strings.Join(n.classes, " ")
}

func (n *Node) SetText(text string) *Node {
	n.text = text
	return n
}

func (n *Node) Text() string { return n.text }

// TextContent concatenates the text of n and its descendants in document order.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		b.WriteString(c.text)
		return true
	})
	return b.String()
}

func (n *Node) SetAttr(key, value string) *Node {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[key] = value
	return n
}

func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

func (n *Node) RemoveAttr(key string) {
	delete(n.attrs, key)
}

func (n *Node) SetStyle(prop, value string) *Node {
	if n.style == nil {
		n.style = make(map[string]string)
	}
	n.style[prop] = value
	return n
}

func (n *Node) Style(prop string) string { return n.style[prop] }

func (n *Node) SetData(key, value string) *Node {
	if n.data == nil {
		n.data = make(map[string]string)
	}
	n.data[key] = value
	return n
}

func (n *Node) Data(key string) string { return n.data[key] }

// SetSource sets the media source of an img or video node.
func (n *Node) SetSource(src string) *Node {
	n.src = src
	return n
}

func (n *Node) Source() string { return n.src }

func (n *Node) SetBounds(r Rect) *Node {
	n.bounds = r
	return n
}

func (n *Node) Bounds() Rect { return n.bounds }

// AbsoluteBounds returns the box of n in the coordinate space of its topmost ancestor.
func (n *Node) AbsoluteBounds() Rect {
	r := n.bounds
	for p := n.parent; p != nil; p = p.parent {
		r.X += p.bounds.X
		r.Y += p.bounds.Y
	}
	return r
}

// On registers fn for events of type typ and returns a function that removes it.
func (n *Node) On(typ string, fn func(Event)) func() {
	return n.addListener(typ, fn, false)
}

// Once registers fn for the next event of type typ only.
func (n *Node) Once(typ string, fn func(Event)) func() {
	return n.addListener(typ, fn, true)
}

func (n *Node) addListener(typ string, fn func(Event), once bool) func() {
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	l := &listener{fn: fn, once: once}
	n.listeners[typ] = append(n.listeners[typ], l)
	return func() { l.off = true }
}

// Dispatch delivers an event of type typ to n's listeners and returns how many ran.
func (n *Node) Dispatch(typ string) int {
	ls := n.listeners[typ]
	kept := ls[:0]
	var run []*listener
	for _, l := range ls {
		if l.off {
			continue
		}
		run = append(run, l)
		if !l.once {
			kept = append(kept, l)
		}
	}
	n.listeners[typ] = kept

	for _, l := range run {
		l.fn(Event{Type: typ, Target: n})
	}
	return len(run)
}

// ListenerCount returns the number of live listeners for typ.
func (n *Node) ListenerCount(typ string) int {
	count := 0
	for _, l := range n.listeners[typ] {
		if !l.off {
			count++
		}
	}
	return count
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns every descendant (n included) matching match, in document order.
func (n *Node) Find(match func(*Node) bool) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if match(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// FindByClass returns the first node carrying class, or nil.
func (n *Node) FindByClass(class string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.HasClass(class) {
			found = c
			return false
		}
		return true
	})
	return found
}

// FindKind returns every node of the given kind.
func (n *Node) FindKind(kind Kind) []*Node {
	return n.Find(func(c *Node) bool { return c.kind == kind })
}

// Snapshot is a serializable copy of a subtree.
type Snapshot struct {
	Tag      string            `json:"tag"`
	Classes  []string          `json:"classes,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Text     string            `json:"text,omitempty"`
	Src      string            `json:"src,omitempty"`
	Children []Snapshot        `json:"children,omitempty"`
}

// Snapshot copies the subtree rooted at n.
func (n *Node) Snapshot() Snapshot {
	s := Snapshot{
		Tag:     n.tag,
		Classes: append([]string(nil), n.classes...),
		Attrs:   copyMap(n.attrs),
		Style:   copyMap(n.style),
		Data:    copyMap(n.data),
		Text:    n.text,
		Src:     n.src,
	}
	sort.Strings(s.Classes)
	for _, c := range n.children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}

// String renders the snapshot as JSON. Map keys are sorted so equal trees print equally.
func (n *Node) String() string {
	b, err := json.Marshal(n.Snapshot())
	if err != nil {
		return ""
	}
	return string(b)
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
