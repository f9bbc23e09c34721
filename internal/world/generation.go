// Resource site generation.
// Picks the distinct cells that ToolResources occupy, either uniformly or
// weighted by layered simplex noise so that sites clump into patches.
package world

import (
	"fmt"
	"math"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Layout selects how resource sites are distributed over the grid.
type Layout string

const (
	LayoutUniform   Layout = "uniform"
	LayoutClustered Layout = "clustered"
)

// ParseLayout maps a config string to a Layout. Empty means uniform.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutUniform:
		return LayoutUniform, nil
	case LayoutClustered:
		return LayoutClustered, nil
	default:
		return "", fmt.Errorf("unknown resource layout %q (valid: uniform, clustered)", s)
	}
}

// Sampler is the slice of the random source site generation needs.
type Sampler interface {
	Intn(n int) int
	Float() float64
}

// SiteConfig holds resource site generation parameters.
type SiteConfig struct {
	Count  int
	Layout Layout
	Seed   int64 // Noise seed for the clustered layout

	// Noise shape for the clustered layout.
	Octaves     int
	Frequency   float64
	Persistence float64
}

// DefaultSiteConfig returns a uniform layout for count sites.
func DefaultSiteConfig(count int) SiteConfig {
	return SiteConfig{
		Count:       count,
		Layout:      LayoutUniform,
		Octaves:     3,
		Frequency:   0.15,
		Persistence: 0.5,
	}
}

// PlaceSites samples cfg.Count distinct cells of a width×height grid without
// replacement.
func PlaceSites(width, height int, cfg SiteConfig, rng Sampler) ([]Coord, error) {
	total := width * height
	if cfg.Count < 0 || cfg.Count > total {
		return nil, fmt.Errorf("cannot place %d resource sites on %d cells", cfg.Count, total)
	}
	if cfg.Count == 0 {
		return nil, nil
	}

	cells := make([]Coord, 0, total)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			cells = append(cells, Coord{X: x, Y: y})
		}
	}

	switch cfg.Layout {
	case "", LayoutUniform:
		return sampleUniform(cells, cfg.Count, rng), nil
	case LayoutClustered:
		return sampleWeighted(cells, cfg, rng), nil
	default:
		return nil, fmt.Errorf("unknown resource layout %q", cfg.Layout)
	}
}

// sampleUniform runs a partial Fisher–Yates shuffle over cells.
func sampleUniform(cells []Coord, n int, rng Sampler) []Coord {
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(cells)-i)
		cells[i], cells[j] = cells[j], cells[i]
	}
	return append([]Coord(nil), cells[:n]...)
}

// sampleWeighted draws without replacement with probability proportional to
// the noise field, using exponential keys u^(1/w).
func sampleWeighted(cells []Coord, cfg SiteConfig, rng Sampler) []Coord {
	noise := opensimplex.NewNormalized(cfg.Seed)

	type keyed struct {
		cell Coord
		key  float64
	}
	keys := make([]keyed, len(cells))
	for i, c := range cells {
		w := octaveNoise(noise, float64(c.X), float64(c.Y), cfg.Octaves, cfg.Frequency, cfg.Persistence)
		// Square the field so peaks dominate; keep a floor so every cell stays reachable.
		w = math.Max(w*w, 1e-6)
		u := rng.Float()
		keys[i] = keyed{cell: c, key: math.Pow(u, 1/w)}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].key > keys[j].key })

	out := make([]Coord, cfg.Count)
	for i := range out {
		out[i] = keys[i].cell
	}
	return out
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
