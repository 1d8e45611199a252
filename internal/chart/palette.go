package chart

import "fmt"

// Palette is an ordered list of CSS colors assigned to slices by position.
type Palette []string

// DefaultPalette is the fixed color table used when no palette is configured.
var DefaultPalette = Palette{
	rgba(53, 124, 165),
	rgba(0, 141, 76),
	rgba(219, 139, 11),
	rgba(202, 25, 90),
	rgba(85, 82, 153),
	rgba(66, 133, 244),
	rgba(219, 68, 55),
	rgba(244, 180, 0),
	rgba(15, 157, 88),
	rgba(171, 71, 188),
	rgba(0, 172, 193),
	rgba(255, 112, 67),
	rgba(158, 157, 36),
	rgba(92, 107, 192),
	rgba(240, 98, 146),
	rgba(0, 121, 107),
	rgba(194, 24, 91),
}

func rgba(r, g, b int) string {
	return fmt.Sprintf("rgba(%d, %d, %d, 0.7)", r, g, b)
}

// Color returns the color for emission index i, cycling past the end.
// An empty palette falls back to DefaultPalette.
func (p Palette) Color(i int) string {
	if len(p) == 0 {
		p = DefaultPalette
	}
	if i < 0 {
		i = -i
	}
	return p[i%len(p)]
}

// ColorForIndex looks up i in DefaultPalette.
func ColorForIndex(i int) string {
	return DefaultPalette.Color(i)
}
