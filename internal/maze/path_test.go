package maze

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

// 0 path, 1 wall, 2 start, 3 goal, 4 key, 5 door
var testRows = [][]Cell{
	{1, 1, 1, 1, 1, 1, 1},
	{1, 2, 0, 0, 0, 4, 1},
	{1, 0, 1, 1, 1, 0, 1},
	{1, 0, 0, 5, 0, 0, 1},
	{1, 1, 1, 0, 1, 1, 1},
	{1, 1, 1, 3, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 1},
}

func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := FromRows(testRows)
	if err != nil {
		t.Fatalf("building grid: %v", err)
	}
	return g
}

func TestShortestPath(t *testing.T) {
	start := Position{X: 1, Y: 1}

	tests := map[string]struct {
		target  Target
		blocked []Cell
		expLen  int
		expEnd  Position
	}{
		"goal through door": {
			target:  ToCell(Goal),
			blocked: []Cell{Wall},
			expLen:  7,
			expEnd:  Position{X: 3, Y: 5},
		},
		"goal cut off by door": {
			target:  ToPosition(Position{X: 3, Y: 5}),
			blocked: []Cell{Wall, Door},
			expLen:  0,
		},
		"any key": {
			target:  ToCell(Key),
			blocked: []Cell{Wall, Door},
			expLen:  5,
			expEnd:  Position{X: 5, Y: 1},
		},
		"start is target": {
			target:  ToPosition(start),
			blocked: []Cell{Wall},
			expLen:  1,
			expEnd:  start,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := ShortestPath(testGrid(t), start, tt.target, tt.blocked...)
			testutil.AssertEqual(t, "length", len(path), tt.expLen)
			if len(path) == 0 {
				return
			}
			testutil.AssertEqual(t, "first", path[0], start)
			testutil.AssertEqual(t, "last", path[len(path)-1], tt.expEnd)
			for i := 1; i < len(path); i++ {
				testutil.AssertEqual(t, "step distance", path[i].Manhattan(path[i-1]), 1)
			}
		})
	}
}

func TestShortestPath_Unreachable(t *testing.T) {
	g := testGrid(t)
	g.Set(Position{X: 3, Y: 4}, Wall)

	path := ShortestPath(g, Position{X: 1, Y: 1}, ToCell(Goal), Wall)
	if path != nil {
		t.Errorf("expected nil path, got %v", path)
	}
}

func TestReachable(t *testing.T) {
	g := testGrid(t)
	start := Position{X: 1, Y: 1}

	testutil.AssertEqual(t, "all open", len(Reachable(g, start, Wall)), 14)
	// The door and the goal corridor beyond it are cut off.
	testutil.AssertEqual(t, "door blocked", len(Reachable(g, start, Wall, Door)), 11)
}

func TestDecisionPoints(t *testing.T) {
	points := DecisionPoints(testGrid(t))

	testutil.AssertEqual(t, "count", len(points), 1)
	testutil.AssertEqual(t, "junction", points[0], Position{X: 3, Y: 3})
}

func TestGrid_Replace(t *testing.T) {
	g := testGrid(t)

	changed := g.Replace(Door, Path)
	testutil.AssertEqual(t, "changed", len(changed), 1)
	testutil.AssertEqual(t, "position", changed[0], Position{X: 3, Y: 3})
	testutil.AssertEqual(t, "remaining doors", g.Count(Door), 0)
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := FromRows([][]Cell{{1, 1}, {1}})
	testutil.AssertErrorContains(t, err, "row 1 has 1 cells")
}
