package decorator

import (
	"image/color"
	"math"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// dot paints a square brush of the given width centered on (x, y).
func dot(f sample.Frame, x, y, width int, c color.Color) {
	if width <= 1 {
		f.Set(x, y, c)
		return
	}
	lo := -(width - 1) / 2
	for dy := lo; dy < lo+width; dy++ {
		for dx := lo; dx < lo+width; dx++ {
			f.Set(x+dx, y+dy, c)
		}
	}
}

// line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func line(f sample.Frame, x0, y0, x1, y1, width int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		dot(f, x0, y0, width, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// circle draws the outline of a circle with the midpoint algorithm.
func circle(f sample.Frame, cx, cy, r, width int, c color.Color) {
	if r <= 0 {
		dot(f, cx, cy, width, c)
		return
	}
	x, y := r, 0
	e := 1 - r
	for x >= y {
		for _, p := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			dot(f, cx+p[0], cy+p[1], width, c)
		}
		y++
		if e < 0 {
			e += 2*y + 1
		} else {
			x--
			e += 2*(y-x) + 1
		}
	}
}

// fill paints the rectangle [x0, x1) x [y0, y1).
func fill(f sample.Frame, x0, y0, x1, y1 int, c color.Color) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			f.Set(x, y, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}
