package terminal

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

type cell struct {
	r     rune
	fg    colorful.Color
	depth float64
}

// canvas is a depth-tested character grid. Everything is drawn here first
// and copied to the screen in one pass.
type canvas struct {
	cols, rows int
	bg         colorful.Color
	cells      []cell
}

func newCanvas(cols, rows int, bg colorful.Color) *canvas {
	c := &canvas{bg: bg}
	c.reset(cols, rows)
	return c
}

func (c *canvas) reset(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c.cols, c.rows = cols, rows
	if cap(c.cells) < cols*rows {
		c.cells = make([]cell, cols*rows)
	}
	c.cells = c.cells[:cols*rows]
	for i := range c.cells {
		c.cells[i] = cell{r: ' ', depth: math.Inf(1)}
	}
}

func (c *canvas) at(x, y int) (cell, bool) {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return cell{}, false
	}
	return c.cells[y*c.cols+x], true
}

// plot writes r at (x, y) if depth is nearer than what is there.
func (c *canvas) plot(x, y int, r rune, fg colorful.Color, depth float64) {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return
	}
	i := y*c.cols + x
	if depth >= c.cells[i].depth {
		return
	}
	c.cells[i] = cell{r: r, fg: fg, depth: depth}
}

// text writes s starting at (x, y) in front of everything else.
func (c *canvas) text(x, y int, s string, fg colorful.Color) {
	for _, r := range s {
		c.plot(x, y, r, fg, math.Inf(-1))
		x++
	}
}

// line draws from (x0, y0) to (x1, y1) with depth interpolated between d0
// and d1.
func (c *canvas) line(x0, y0, x1, y1 int, d0, d1 float64, r rune, fg colorful.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	steps := max(dx, -dy)
	if steps > 4*(c.cols+c.rows) {
		// Endpoints far off screen; not worth walking.
		return
	}
	e := dx + dy
	for i := 0; ; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		c.plot(x0, y0, r, fg, d0+(d1-d0)*t)
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

func (c *canvas) flush(screen tcell.Screen) {
	bg := rgb(c.bg)
	for y := 0; y < c.rows; y++ {
		for x := 0; x < c.cols; x++ {
			cl := c.cells[y*c.cols+x]
			style := tcell.StyleDefault.Background(bg).Foreground(rgb(cl.fg))
			screen.SetContent(x, y, cl.r, nil, style)
		}
	}
}

func rgb(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
