package world

import (
	"math/rand"
	"testing"
)

type randSampler struct{ r *rand.Rand }

func (s randSampler) Intn(n int) int  { return s.r.Intn(n) }
func (s randSampler) Float() float64 { return s.r.Float64() }

func TestPlaceSitesDistinctAndInBounds(t *testing.T) {
	for _, layout := range []Layout{LayoutUniform, LayoutClustered} {
		t.Run(string(layout), func(t *testing.T) {
			cfg := DefaultSiteConfig(40)
			cfg.Layout = layout
			cfg.Seed = 11
			sites, err := PlaceSites(10, 8, cfg, randSampler{rand.New(rand.NewSource(1))})
			if err != nil {
				t.Fatalf("place sites: %v", err)
			}
			if len(sites) != 40 {
				t.Fatalf("got %d sites, want 40", len(sites))
			}
			seen := map[Coord]bool{}
			for _, c := range sites {
				if c.X < 0 || c.X >= 10 || c.Y < 0 || c.Y >= 8 {
					t.Fatalf("site %v out of bounds", c)
				}
				if seen[c] {
					t.Fatalf("site %v sampled twice", c)
				}
				seen[c] = true
			}
		})
	}
}

func TestPlaceSitesFillsWholeGrid(t *testing.T) {
	sites, err := PlaceSites(3, 3, DefaultSiteConfig(9), randSampler{rand.New(rand.NewSource(2))})
	if err != nil {
		t.Fatalf("place sites: %v", err)
	}
	if len(sites) != 9 {
		t.Fatalf("got %d sites, want 9", len(sites))
	}
}

func TestPlaceSitesRejectsTooMany(t *testing.T) {
	if _, err := PlaceSites(2, 2, DefaultSiteConfig(5), randSampler{rand.New(rand.NewSource(3))}); err == nil {
		t.Fatal("expected error when asking for more sites than cells")
	}
}

func TestPlaceSitesZero(t *testing.T) {
	sites, err := PlaceSites(4, 4, DefaultSiteConfig(0), randSampler{rand.New(rand.NewSource(4))})
	if err != nil || len(sites) != 0 {
		t.Fatalf("expected no sites, got %v, %v", sites, err)
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		in      string
		want    Layout
		wantErr bool
	}{
		{"", LayoutUniform, false},
		{"uniform", LayoutUniform, false},
		{"clustered", LayoutClustered, false},
		{"spiral", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLayout(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLayout(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLayout(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
