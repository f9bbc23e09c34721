// Package world provides the bounded 2D lattice agents live on.
// The grid is not toroidal: cells on the border simply have fewer neighbors.
// Several agents may share a cell.
package world

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrOutOfBounds   = errors.New("coordinate out of bounds")
	ErrNotPlaced     = errors.New("agent not on grid")
	ErrAlreadyPlaced = errors.New("agent already on grid")
)

// Coord is a cell position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// mooreOffsets are the eight neighbor directions, center excluded.
var mooreOffsets = [8]Coord{
	{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
	{X: 0, Y: -1}, {X: 0, Y: 1},
	{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
}

// Distance returns the Euclidean distance between two cells.
func Distance(a, b Coord) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Chebyshev returns the king-move distance between two cells.
func Chebyshev(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}

// Grid is a multi-occupancy lattice keyed by agent id.
type Grid[K comparable] struct {
	Width  int
	Height int

	cells     map[Coord][]K // Occupants per cell, in arrival order
	positions map[K]Coord   // Reverse index: agent → cell
}

// NewGrid creates an empty width×height grid.
func NewGrid[K comparable](width, height int) (*Grid[K], error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("grid %dx%d: dimensions must be positive", width, height)
	}
	return &Grid[K]{
		Width:     width,
		Height:    height,
		cells:     make(map[Coord][]K),
		positions: make(map[K]Coord),
	}, nil
}

// InBounds reports whether c lies on the grid.
func (g *Grid[K]) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// Center returns the middle cell, rounding down.
func (g *Grid[K]) Center() Coord {
	return Coord{X: g.Width / 2, Y: g.Height / 2}
}

// CellCount returns the number of cells on the grid.
func (g *Grid[K]) CellCount() int {
	return g.Width * g.Height
}

// Neighbors returns the in-bounds cells of the 8-neighborhood of c,
// excluding c itself, in a fixed order.
func (g *Grid[K]) Neighbors(c Coord) []Coord {
	out := make([]Coord, 0, len(mooreOffsets))
	for _, d := range mooreOffsets {
		n := Coord{X: c.X + d.X, Y: c.Y + d.Y}
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Occupants returns the agents currently at c. The slice is a copy.
func (g *Grid[K]) Occupants(c Coord) []K {
	return slices.Clone(g.cells[c])
}

// Position returns the cell an agent occupies.
func (g *Grid[K]) Position(id K) (Coord, bool) {
	c, ok := g.positions[id]
	return c, ok
}

// Len returns the number of agents on the grid.
func (g *Grid[K]) Len() int {
	return len(g.positions)
}

// Place puts an agent that is not yet on the grid at c.
func (g *Grid[K]) Place(id K, c Coord) error {
	if !g.InBounds(c) {
		return fmt.Errorf("place %v at %v: %w", id, c, ErrOutOfBounds)
	}
	if _, ok := g.positions[id]; ok {
		return fmt.Errorf("place %v: %w", id, ErrAlreadyPlaced)
	}
	g.cells[c] = append(g.cells[c], id)
	g.positions[id] = c
	return nil
}

// Move relocates an agent already on the grid to c.
func (g *Grid[K]) Move(id K, c Coord) error {
	if !g.InBounds(c) {
		return fmt.Errorf("move %v to %v: %w", id, c, ErrOutOfBounds)
	}
	if err := g.Remove(id); err != nil {
		return err
	}
	g.cells[c] = append(g.cells[c], id)
	g.positions[id] = c
	return nil
}

// Remove takes an agent off the grid.
func (g *Grid[K]) Remove(id K) error {
	c, ok := g.positions[id]
	if !ok {
		return fmt.Errorf("remove %v: %w", id, ErrNotPlaced)
	}
	occ := g.cells[c]
	if i := slices.Index(occ, id); i >= 0 {
		occ = slices.Delete(occ, i, i+1)
	}
	if len(occ) == 0 {
		delete(g.cells, c)
	} else {
		g.cells[c] = occ
	}
	delete(g.positions, id)
	return nil
}
