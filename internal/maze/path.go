package maze

// Target decides whether a position ends a search.
type Target func(g *Grid, p Position) bool

// ToPosition targets a literal position.
func ToPosition(goal Position) Target {
	return func(_ *Grid, p Position) bool {
		return p == goal
	}
}

// ToCell targets any cell bearing the given code.
func ToCell(c Cell) Target {
	return func(g *Grid, p Position) bool {
		return g.At(p) == c
	}
}

// ShortestPath runs a breadth-first search from start over 4-connected
// neighbours, never entering a cell whose code is in blocked. It returns the
// path including both endpoints, or nil when the target is unreachable.
// The start cell is always enterable.
func ShortestPath(g *Grid, start Position, target Target, blocked ...Cell) []Position {
	if g == nil || target == nil || !g.InBounds(start) {
		return nil
	}

	idx := func(p Position) int { return p.Y*g.width + p.X }

	parent := make([]int, g.width*g.height)
	for i := range parent {
		parent[i] = -1
	}
	parent[idx(start)] = idx(start)

	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if target(g, cur) {
			return unwind(g, parent, idx(start), idx(cur))
		}

		for _, d := range neighbors {
			next := cur.Add(d)
			if !g.InBounds(next) || parent[idx(next)] != -1 || isBlocked(g.At(next), blocked) {
				continue
			}
			parent[idx(next)] = idx(cur)
			queue = append(queue, next)
		}
	}

	return nil
}

func unwind(g *Grid, parent []int, from, to int) []Position {
	var rev []Position
	for i := to; ; i = parent[i] {
		rev = append(rev, Position{X: i % g.width, Y: i / g.width})
		if i == from {
			break
		}
	}
	path := make([]Position, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return path
}

// Reachable flood-fills from start and returns every reachable position in
// breadth-first order, start included.
func Reachable(g *Grid, start Position, blocked ...Cell) []Position {
	if g == nil || !g.InBounds(start) {
		return nil
	}

	seen := make([]bool, g.width*g.height)
	seen[start.Y*g.width+start.X] = true

	out := []Position{start}
	for i := 0; i < len(out); i++ {
		for _, d := range neighbors {
			next := out[i].Add(d)
			if !g.InBounds(next) || seen[next.Y*g.width+next.X] || isBlocked(g.At(next), blocked) {
				continue
			}
			seen[next.Y*g.width+next.X] = true
			out = append(out, next)
		}
	}
	return out
}

// DecisionPoints returns every interior non-wall cell with more than two open
// neighbours, in row-major order.
func DecisionPoints(g *Grid) []Position {
	var points []Position
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			p := Position{X: x, Y: y}
			if g.At(p) == Wall {
				continue
			}
			open := 0
			for _, d := range neighbors {
				if g.At(p.Add(d)) != Wall {
					open++
				}
			}
			if open > 2 {
				points = append(points, p)
			}
		}
	}
	return points
}

func isBlocked(c Cell, blocked []Cell) bool {
	for _, b := range blocked {
		if c == b {
			return true
		}
	}
	return false
}
