package detection

import "image"

// Mask is a binary pixel grid with its origin at (0,0).
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, bits: make([]bool, width*height)}
}

// Set marks (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x >= 0 && x < m.Width && y >= 0 && y < m.Height {
		m.bits[y*m.Width+x] = true
	}
}

// At reports whether (x, y) is set. Out-of-range coordinates are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Region is one 8-connected component of a Mask.
type Region struct {
	// Bounds encloses every pixel; Max is exclusive.
	Bounds image.Rectangle
	Points []image.Point
}

// BorderCoverage is the fraction of the bounding rectangle's outline that
// belongs to the region. Rectangle outlines and solid rectangles score near
// 1; circles and diagonal strokes score low.
func (r Region) BorderCoverage() float64 {
	w, h := r.Bounds.Dx(), r.Bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}
	perimeter := 2*(w+h) - 4
	if w == 1 || h == 1 {
		perimeter = w * h
	}
	onBorder := 0
	for _, p := range r.Points {
		if p.X == r.Bounds.Min.X || p.X == r.Bounds.Max.X-1 || p.Y == r.Bounds.Min.Y || p.Y == r.Bounds.Max.Y-1 {
			onBorder++
		}
	}
	if onBorder >= perimeter {
		return 1
	}
	return float64(onBorder) / float64(perimeter)
}

// FindRegions groups set pixels into 8-connected components, scanning in
// row-major order. Components with fewer than minPixels pixels are dropped.
func FindRegions(m *Mask, minPixels int) []Region {
	visited := make([]bool, len(m.bits))
	regions := make([]Region, 0)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			if !m.bits[i] || visited[i] {
				continue
			}
			r := floodFill(m, visited, x, y)
			if len(r.Points) >= minPixels {
				regions = append(regions, r)
			}
		}
	}
	return regions
}

// floodFill collects the component containing (startX, startY) using an
// explicit stack.
func floodFill(m *Mask, visited []bool, startX, startY int) Region {
	minX, minY, maxX, maxY := startX, startY, startX, startY
	points := make([]image.Point, 0)
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !m.At(p.X, p.Y) {
			continue
		}
		i := p.Y*m.Width + p.X
		if visited[i] {
			continue
		}
		visited[i] = true
		points = append(points, p)

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	return Region{
		Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
		Points: points,
	}
}
