// Package wheel maps pointer positions and free-text words onto the eight
// category emotion wheel: angle selects the category, radius the intensity.
package wheel

import (
	"math"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Selection is a resolved wheel position.
type Selection struct {
	Emotion   string  `json:"emotion"`
	Angle     float64 `json:"angle"`
	Intensity float64 `json:"intensity"`
	Level     Level   `json:"intensityLevel"`
}

// Codec resolves selections against a wheel of fixed maximum radius and
// remembers the last one until Reset.
type Codec struct {
	maxRadius float64

	mu       sync.Mutex
	selected *Selection
}

// New returns a codec for a wheel of the given maximum radius.
func New(maxRadius float64) *Codec {
	if maxRadius <= 0 {
		maxRadius = 1
	}
	return &Codec{maxRadius: maxRadius}
}

// MaxRadius returns the wheel radius in pointer units.
func (c *Codec) MaxRadius() float64 { return c.maxRadius }

// ResolveFromPointer resolves a pointer offset (x, y) from the wheel center.
// Points outside the wheel return false and leave the stored selection alone.
func (c *Codec) ResolveFromPointer(x, y float64) (Selection, bool) {
	distance := math.Hypot(x, y)
	if distance > c.maxRadius {
		return Selection{}, false
	}

	angle := NormalizeAngle(math.Atan2(y, x) * 180 / math.Pi)
	intensity := clamp01(distance / c.maxRadius)

	sel := Selection{
		Emotion:   CategoryForAngle(angle).Name,
		Angle:     angle,
		Intensity: intensity,
		Level:     LevelFor(intensity),
	}
	c.store(sel)
	return sel, true
}

// ResolveFromWord maps a free-text word onto a category using the keyword
// table. A word matches when it contains a keyword or a keyword contains it;
// the first matching category in table order wins and no match yields Joy. Word
// selections always sit at the canonical angle with moderate intensity.
func (c *Codec) ResolveFromWord(word string) Selection {
	cat := CategoryForWord(word)
	sel := Selection{
		Emotion:   cat.Name,
		Angle:     cat.Angle,
		Intensity: WordIntensity,
		Level:     Moderate,
	}
	c.store(sel)
	return sel
}

// Selection reports the last resolved selection.
func (c *Codec) Selection() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Selection{}, false
	}
	return *c.selected, true
}

// Reset clears the stored selection.
func (c *Codec) Reset() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

func (c *Codec) store(sel Selection) {
	c.mu.Lock()
	c.selected = &sel
	c.mu.Unlock()
}

// CategoryForWord returns the category a word resolves to. An exact keyword
// hit is checked across the whole table first so that "unhappy" resolves to
// Sadness rather than to Joy through the substring rule ("happy").
func CategoryForWord(word string) Category {
	w := strings.TrimSpace(cases.Lower(language.Und).String(word))
	for _, cat := range categories {
		for _, kw := range cat.Keywords {
			if w == kw {
				return cat
			}
		}
	}
	for _, cat := range categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(w, kw) || strings.Contains(kw, w) {
				return cat
			}
		}
	}
	return categories[0]
}

// CategoryForAngle returns the category whose canonical angle is nearest to
// angle. Exact midpoints go to the earlier category in table order.
func CategoryForAngle(angle float64) Category {
	best := categories[0]
	minDiff := math.Abs(AngleDifference(angle, best.Angle))
	for _, cat := range categories[1:] {
		d := math.Abs(AngleDifference(angle, cat.Angle))
		if d < minDiff {
			minDiff = d
			best = cat
		}
	}
	return best
}

// AngleDifference returns a-b normalized into (-180, 180].
func AngleDifference(a, b float64) float64 {
	diff := math.Mod(a-b, 360)
	if diff > 180 {
		diff -= 360
	} else if diff <= -180 {
		diff += 360
	}
	return diff
}

// NormalizeAngle maps any angle in degrees into [0, 360).
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// Point is the inverse mapping: the pointer offset from the wheel center for
// an angle and intensity on a wheel of the given radius.
func Point(angle, intensity, radius float64) (x, y float64) {
	rad := angle * math.Pi / 180
	r := clamp01(intensity) * radius
	return math.Cos(rad) * r, math.Sin(rad) * r
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
