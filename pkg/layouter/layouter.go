// Package layouter packs grouped media of different aspect ratios into rows of a fixed
// width. It is pure: the same input always yields the same geometry.
package layouter

import (
	"math"
	"strings"
)

// Default album policy.
const (
	DefaultMaxWidth = 420
	DefaultMinWidth = 100
	DefaultSpacing  = 2
)

// Size is an item's natural width and height. Only the ratio matters.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Sides marks which edges of the album an item touches.
type Sides uint8

const (
	SideTop Sides = 1 << iota
	SideRight
	SideBottom
	SideLeft
)

// Has reports whether every bit of o is set.
func (s Sides) Has(o Sides) bool { return s&o == o }

func (s Sides) String() string {
	var parts []string
	for _, side := range []struct {
		bit  Sides
		name string
	}{{SideTop, "top"}, {SideRight, "right"}, {SideBottom, "bottom"}, {SideLeft, "left"}} {
		if s.Has(side.bit) {
			parts = append(parts, side.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Geometry is an item's box inside the album, in pixels.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Item is one placed album slot, in input order.
type Item struct {
	Geometry Geometry `json:"geometry"`
	Sides    Sides    `json:"sides"`
}

// Config holds the packing policy. MinWidth is the smallest row height that does not
// get penalised. MaxHeight defaults to MaxWidth.
type Config struct {
	MaxWidth  int `json:"max_width"`
	MinWidth  int `json:"min_width"`
	Spacing   int `json:"spacing"`
	MaxHeight int `json:"max_height"`
}

// DefaultConfig returns the chat album policy.
func DefaultConfig() Config {
	return Config{MaxWidth: DefaultMaxWidth, MinWidth: DefaultMinWidth, Spacing: DefaultSpacing}
}

type attempt struct {
	counts  []int
	heights []float64
}

// Layout places one item per size.
func Layout(sizes []Size, cfg Config) []Item {
	n := len(sizes)
	if n == 0 || cfg.MaxWidth <= 0 {
		return nil
	}
	if cfg.Spacing < 0 {
		cfg.Spacing = 0
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = cfg.MaxWidth
	}

	ratios := cropRatios(sizes)
	best := bestAttempt(ratios, cfg)
	return place(ratios, best, cfg)
}

// cropRatios clamps ratios into a band picked from the album's overall shape, so one
// panorama cannot squash the other rows.
func cropRatios(sizes []Size) []float64 {
	ratios := make([]float64, len(sizes))
	sum := 0.0
	for i, s := range sizes {
		r := 1.0
		if s.W > 0 && s.H > 0 {
			r = s.W / s.H
		}
		ratios[i] = r
		sum += r
	}

	avg := (sum + 1) / float64(len(ratios))
	lo, hi := 0.6667, 1.0
	if avg > 1.1 {
		lo, hi = 1.0, 2.75
	}
	for i, r := range ratios {
		ratios[i] = math.Max(lo, math.Min(hi, r))
	}
	return ratios
}

func averageRatio(ratios []float64) float64 {
	sum := 0.0
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

// bestAttempt scores every allowed split into rows and keeps the first best one.
func bestAttempt(ratios []float64, cfg Config) attempt {
	n := len(ratios)
	tall := averageRatio(ratios) < 0.85

	minRows := (n + 2) / 3
	maxRows := minRows
	if maxRows < 4 {
		maxRows = 4
	}
	if maxRows > n {
		maxRows = n
	}

	var (
		best      attempt
		bestScore = math.Inf(1)
	)
	for rows := 1; rows <= maxRows; rows++ {
		maxPerRow := func(row int) int {
			if rows == 3 && row == 1 && tall {
				return 4
			}
			return 3
		}
		compositions(n, rows, maxPerRow, func(counts []int) {
			a := measure(ratios, counts, cfg)
			if s := score(a, cfg); s < bestScore {
				bestScore = s
				best = a
			}
		})
	}
	return best
}

// compositions calls fn with every split of n items into exactly rows rows, row i
// holding between 1 and maxPerRow(i) items.
func compositions(n, rows int, maxPerRow func(int) int, fn func([]int)) {
	// capacity[i] is how many items rows i.. can hold at most.
	capacity := make([]int, rows+1)
	for i := rows - 1; i >= 0; i-- {
		capacity[i] = capacity[i+1] + maxPerRow(i)
	}
	if n < rows || n > capacity[0] {
		return
	}

	counts := make([]int, rows)
	var walk func(row, left int)
	walk = func(row, left int) {
		if row == rows {
			fn(append([]int(nil), counts...))
			return
		}
		for c := 1; c <= maxPerRow(row) && c <= left-(rows-1-row); c++ {
			if left-c > capacity[row+1] {
				continue
			}
			counts[row] = c
			walk(row+1, left-c)
		}
	}
	walk(0, n)
}

func measure(ratios []float64, counts []int, cfg Config) attempt {
	heights := make([]float64, len(counts))
	offset := 0
	for i, c := range counts {
		sum := 0.0
		for _, r := range ratios[offset : offset+c] {
			sum += r
		}
		heights[i] = float64(cfg.MaxWidth-(c-1)*cfg.Spacing) / sum
		offset += c
	}
	return attempt{counts: counts, heights: heights}
}

func score(a attempt, cfg Config) float64 {
	total := float64(cfg.Spacing * (len(a.heights) - 1))
	minHeight := math.Inf(1)
	for _, h := range a.heights {
		total += h
		minHeight = math.Min(minHeight, h)
	}

	s := math.Abs(total - float64(cfg.MaxHeight))
	if minHeight < float64(cfg.MinWidth) {
		s *= 1.5
	}
	for i := 0; i+1 < len(a.counts); i++ {
		if a.counts[i] > a.counts[i+1] {
			s *= 1.5
			break
		}
	}
	return s
}

func place(ratios []float64, a attempt, cfg Config) []Item {
	items := make([]Item, 0, len(ratios))
	y := 0
	idx := 0
	lastRow := len(a.counts) - 1
	for row, c := range a.counts {
		h := a.heights[row]
		height := int(math.Round(h))
		x := 0
		for col := 0; col < c; col++ {
			width := int(math.Round(ratios[idx] * h))
			if col == c-1 {
				width = cfg.MaxWidth - x
			}

			var sides Sides
			if row == 0 {
				sides |= SideTop
			}
			if row == lastRow {
				sides |= SideBottom
			}
			if col == 0 {
				sides |= SideLeft
			}
			if col == c-1 {
				sides |= SideRight
			}

			items = append(items, Item{
				Geometry: Geometry{X: x, Y: y, Width: width, Height: height},
				Sides:    sides,
			})
			x += width + cfg.Spacing
			idx++
		}
		y += height + cfg.Spacing
	}
	return items
}

// TotalWidth is the album width implied by the right-most items.
func TotalWidth(items []Item) int {
	w := 0
	for _, it := range items {
		if it.Sides.Has(SideRight) {
			w = max(w, it.Geometry.X+it.Geometry.Width)
		}
	}
	return w
}

// TotalHeight is the album height implied by the bottom items.
func TotalHeight(items []Item) int {
	h := 0
	for _, it := range items {
		if it.Sides.Has(SideBottom) {
			h = max(h, it.Geometry.Y+it.Geometry.Height)
		}
	}
	return h
}

// Rows groups placed items by their row, in order.
func Rows(items []Item) [][]Item {
	var rows [][]Item
	for _, it := range items {
		if it.Sides.Has(SideLeft) {
			rows = append(rows, nil)
		}
		if len(rows) == 0 {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], it)
	}
	return rows
}
