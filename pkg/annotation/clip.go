package annotation

// ClipBox clips a box to the canvas [0,width]×[0,height].
// The second return value is false when the clipped box is degenerate:
// post-clip area below EpsArea or either side below MinSide.
func ClipBox(b Box, width, height float64) (Box, bool) {
	c := Box{
		XMin: clamp(b.XMin, 0, width),
		YMin: clamp(b.YMin, 0, height),
		XMax: clamp(b.XMax, 0, width),
		YMax: clamp(b.YMax, 0, height),
	}
	if c.Width() < MinSide || c.Height() < MinSide || c.Area() < EpsArea {
		return Box{}, false
	}
	return c, true
}

// ClipPolygon clips a polygon to the canvas [0,width]×[0,height] using
// Sutherland–Hodgman against each rectangle edge in turn. The second return
// value is false when fewer than three vertices survive or the clipped area
// falls below EpsArea.
//
// Sutherland–Hodgman on a non-convex subject can produce a single ring in
// which several separate pieces are joined by coincident bridging edges along
// the canvas boundary. That ring is returned whole: the pieces are not split
// apart and no single largest piece is selected.
func ClipPolygon(points []Point, width, height float64) ([]Point, bool) {
	if len(points) < 3 {
		return nil, false
	}

	// inside predicates and intersection solvers for the four canvas edges.
	edges := []struct {
		inside    func(Point) bool
		intersect func(a, b Point) Point
	}{
		{ // left: x >= 0
			inside:    func(p Point) bool { return p.X >= 0 },
			intersect: func(a, b Point) Point { return intersectVertical(a, b, 0) },
		},
		{ // right: x <= width
			inside:    func(p Point) bool { return p.X <= width },
			intersect: func(a, b Point) Point { return intersectVertical(a, b, width) },
		},
		{ // top: y >= 0
			inside:    func(p Point) bool { return p.Y >= 0 },
			intersect: func(a, b Point) Point { return intersectHorizontal(a, b, 0) },
		},
		{ // bottom: y <= height
			inside:    func(p Point) bool { return p.Y <= height },
			intersect: func(a, b Point) Point { return intersectHorizontal(a, b, height) },
		},
	}

	output := make([]Point, len(points))
	copy(output, points)

	for _, edge := range edges {
		if len(output) == 0 {
			break
		}
		input := output
		output = nil
		prev := input[len(input)-1]
		for _, curr := range input {
			if edge.inside(curr) {
				if !edge.inside(prev) {
					output = append(output, edge.intersect(prev, curr))
				}
				output = append(output, curr)
			} else if edge.inside(prev) {
				output = append(output, edge.intersect(prev, curr))
			}
			prev = curr
		}
	}

	if len(output) < 3 || PolygonArea(output) < EpsArea {
		return nil, false
	}
	return output, true
}

// intersectVertical returns the intersection of segment a→b with the vertical
// line x = x0.
func intersectVertical(a, b Point, x0 float64) Point {
	t := (x0 - a.X) / (b.X - a.X)
	return Point{X: x0, Y: a.Y + t*(b.Y-a.Y)}
}

// intersectHorizontal returns the intersection of segment a→b with the
// horizontal line y = y0.
func intersectHorizontal(a, b Point, y0 float64) Point {
	t := (y0 - a.Y) / (b.Y - a.Y)
	return Point{X: a.X + t*(b.X-a.X), Y: y0}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
