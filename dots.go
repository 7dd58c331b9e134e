/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// Dots-and-boxes rule engine: the canonical edge codec, the adjacency check
// for freeform two-click line draws, and the box completion detector.

// Dot is a lattice point on the dots-and-boxes grid.
type Dot struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// lineKey builds the canonical key for the undirected edge between a and b:
// the lexicographically smaller endpoint always comes first, so the same
// edge hashes identically regardless of draw direction.
func lineKey(a, b Dot) string {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return fmt.Sprintf("%d,%d|%d,%d", a.X, a.Y, b.X, b.Y)
}

// parseLineKey is the inverse of lineKey.
func parseLineKey(key string) (from, to Dot, ok bool) {
	left, right, found := strings.Cut(key, "|")
	if !found {
		return Dot{}, Dot{}, false
	}

	parse := func(s string) (Dot, bool) {
		xRaw, yRaw, found := strings.Cut(s, ",")
		if !found {
			return Dot{}, false
		}
		var d Dot
		if _, err := fmt.Sscanf(xRaw, "%d", &d.X); err != nil {
			return Dot{}, false
		}
		if _, err := fmt.Sscanf(yRaw, "%d", &d.Y); err != nil {
			return Dot{}, false
		}
		return d, true
	}

	from, ok = parse(left)
	if !ok {
		return Dot{}, Dot{}, false
	}
	to, ok = parse(right)
	if !ok {
		return Dot{}, Dot{}, false
	}
	return from, to, true
}

// adjacentDots reports whether two lattice points share an edge, i.e. their
// Manhattan distance is exactly 1.
func adjacentDots(a, b Dot) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// boxKey names the unit cell whose top-left lattice point is (x,y).
func boxKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// findCompletedBoxes returns the cell keys of every unit cell on a rows x
// cols dot lattice whose four bounding edges are all present in lineKeys.
// Callers diff the result against already-owned boxes to find genuinely new
// completions.
func findCompletedBoxes(lineKeys map[string]bool, rows, cols int) []string {
	boxes := []string{}
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols-1; x++ {
			top := lineKey(Dot{x, y}, Dot{x + 1, y})
			right := lineKey(Dot{x + 1, y}, Dot{x + 1, y + 1})
			bottom := lineKey(Dot{x, y + 1}, Dot{x + 1, y + 1})
			left := lineKey(Dot{x, y}, Dot{x, y + 1})

			if lineKeys[top] && lineKeys[right] && lineKeys[bottom] && lineKeys[left] {
				boxes = append(boxes, boxKey(x, y))
			}
		}
	}
	return boxes
}
