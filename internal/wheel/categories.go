package wheel

import "strings"

// Level is the intensity band derived from a normalized radius.
type Level string

const (
	Mild     Level = "mild"
	Moderate Level = "moderate"
	Intense  Level = "intense"
)

// Band thresholds on normalized intensity.
const (
	MildBelow     = 0.33
	ModerateBelow = 0.66
)

// WordIntensity is the fixed intensity given to word-based selections.
const WordIntensity = 0.66

// Mode selects a color palette.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeXRay   Mode = "xray"
)

// Category is one of the eight fixed emotion labels.
type Category struct {
	Name      string
	Angle     float64
	Color     string
	XRayColor string
	Keywords  []string
}

// Table order matters: it breaks nearest-angle ties and decides which
// category wins when a word matches several keyword lists.
var categories = []Category{
	{Name: "Joy", Angle: 0, Color: "#FFD700", XRayColor: "#00FFFF",
		Keywords: []string{"joy", "happy", "joyful", "delighted", "cheerful", "pleased", "content", "glad"}},
	{Name: "Trust", Angle: 45, Color: "#90EE90", XRayColor: "#00CED1",
		Keywords: []string{"trust", "trusting", "accepting", "secure", "safe", "confident"}},
	{Name: "Fear", Angle: 90, Color: "#2F4F4F", XRayColor: "#008B8B",
		Keywords: []string{"fear", "afraid", "scared", "anxious", "worried", "nervous", "terrified"}},
	{Name: "Surprise", Angle: 135, Color: "#87CEEB", XRayColor: "#40E0D0",
		Keywords: []string{"surprise", "surprised", "amazed", "astonished", "shocked", "startled"}},
	{Name: "Sadness", Angle: 180, Color: "#4169E1", XRayColor: "#4682B4",
		Keywords: []string{"sad", "sadness", "unhappy", "depressed", "melancholy", "sorrowful", "gloomy"}},
	{Name: "Disgust", Angle: 225, Color: "#9370DB", XRayColor: "#9370DB",
		Keywords: []string{"disgust", "disgusted", "revolted", "repulsed", "aversion"}},
	{Name: "Anger", Angle: 270, Color: "#DC143C", XRayColor: "#FF1493",
		Keywords: []string{"anger", "angry", "mad", "furious", "irritated", "annoyed", "frustrated"}},
	{Name: "Anticipation", Angle: 315, Color: "#FF8C00", XRayColor: "#00BFFF",
		Keywords: []string{"anticipation", "excited", "eager", "hopeful", "expectant", "interested"}},
}

// Categories returns a copy of the category table in table order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Names returns the category names in table order.
func Names() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a category by name, case-insensitively.
func Lookup(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// ColorFor returns the category color for the given palette.
func (c Category) ColorFor(mode Mode) string {
	if mode == ModeXRay {
		return c.XRayColor
	}
	return c.Color
}

// Color returns the palette color for a category name, or a neutral grey for
// unknown names.
func Color(name string, mode Mode) string {
	c, ok := Lookup(name)
	if !ok {
		return "#888888"
	}
	return c.ColorFor(mode)
}

// ParseMode maps a query value onto a palette; anything unrecognized is normal.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeXRay)) {
		return ModeXRay
	}
	return ModeNormal
}

// ParseLevel accepts a band name case-insensitively.
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case Mild:
		return Mild, true
	case Moderate:
		return Moderate, true
	case Intense:
		return Intense, true
	default:
		return "", false
	}
}

// LevelMatches reports whether level is a valid band for intensity: the band
// LevelFor derives, or moderate at WordIntensity for word selections.
func LevelMatches(intensity float64, level Level) bool {
	if level == LevelFor(intensity) {
		return true
	}
	return level == Moderate && intensity == WordIntensity
}

// LevelFor returns the band for a normalized intensity.
func LevelFor(intensity float64) Level {
	switch {
	case intensity < MildBelow:
		return Mild
	case intensity < ModerateBelow:
		return Moderate
	default:
		return Intense
	}
}
