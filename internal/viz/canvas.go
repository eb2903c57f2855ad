package viz

import (
	"math"
	"strings"

	"github.com/san-kum/fluidsim/internal/fluid"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// bayer is a 4x4 ordered-dither threshold matrix scaled to (0, 1).
var bayer = [4][4]float64{
	{0.5 / 16, 8.5 / 16, 2.5 / 16, 10.5 / 16},
	{12.5 / 16, 4.5 / 16, 14.5 / 16, 6.5 / 16},
	{3.5 / 16, 11.5 / 16, 1.5 / 16, 9.5 / 16},
	{15.5 / 16, 7.5 / 16, 13.5 / 16, 5.5 / 16},
}

// Canvas is a braille pixel grid of Width x Height characters, giving
// (Width*2) x (Height*4) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the dot at (x, y) is on.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Plane is a 2D interior slice sampled from a volume, row-major with j
// growing upwards.
type Plane struct {
	N      int
	Values []float64
}

func (p Plane) At(i, j int) float64 { return p.Values[(j-1)*p.N+(i-1)] }

func (p Plane) Max() float64 {
	best := 0.0
	for _, v := range p.Values {
		best = math.Max(best, v)
	}
	return best
}

// SlicePlane copies layer k of a volume. 2D volumes ignore k.
func SlicePlane(v fluid.Volume, k int) Plane {
	n := v.N()
	p := Plane{N: n, Values: make([]float64, 0, n*n)}
	for j := 1; j <= n; j++ {
		for i := 1; i <= n; i++ {
			p.Values = append(p.Values, v.At(i, j, k))
		}
	}
	return p
}

// ProjectPlane sums a volume along k, the way light through a thin smoke
// column would accumulate.
func ProjectPlane(v fluid.Volume) Plane {
	if v.Dim() == 2 {
		return SlicePlane(v, 1)
	}
	n := v.N()
	p := Plane{N: n, Values: make([]float64, n*n)}
	for k := 1; k <= n; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				p.Values[(j-1)*n+(i-1)] += v.At(i, j, k)
			}
		}
	}
	return p
}

// cell maps a dot to the interior cell under it, flipping y so j=1 is the
// bottom row.
func (c *Canvas) cell(x, y, n int) (int, int) {
	i := 1 + x*n/(c.Width*2)
	j := n - y*n/(c.Height*4)
	return i, j
}

// DrawPlane dithers p onto the canvas. Values at or above scale fill
// every dot; scale <= 0 uses the plane maximum.
func (c *Canvas) DrawPlane(p Plane, scale float64) {
	if scale <= 0 {
		scale = p.Max()
	}
	if scale <= 0 || p.N == 0 {
		return
	}
	for y := 0; y < c.Height*4; y++ {
		for x := 0; x < c.Width*2; x++ {
			i, j := c.cell(x, y, p.N)
			if p.At(i, j)/scale > bayer[y%4][x%4] {
				c.Set(x, y)
			}
		}
	}
}

// DrawFlow draws one short line per stride cells in the direction of
// (u, v), scaled so the fastest sample spans about one cell.
func (c *Canvas) DrawFlow(u, v Plane, stride int) {
	n := u.N
	if n == 0 || stride < 1 {
		return
	}
	peak := 0.0
	for idx := range u.Values {
		peak = math.Max(peak, math.Hypot(u.Values[idx], v.Values[idx]))
	}
	if peak == 0 {
		return
	}
	cellW := float64(c.Width*2) / float64(n)
	cellH := float64(c.Height*4) / float64(n)
	for j := 1; j <= n; j += stride {
		for i := 1; i <= n; i += stride {
			x0 := int((float64(i) - 0.5) * cellW)
			y0 := int((float64(n-j) + 0.5) * cellH)
			dx := u.At(i, j) / peak * cellW * float64(stride) * 0.5
			dy := v.At(i, j) / peak * cellH * float64(stride) * 0.5
			c.DrawLine(x0, y0, x0+int(dx), y0-int(dy))
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
