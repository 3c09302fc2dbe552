package results

import (
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
	"github.com/pixil98/mindmaze/internal/level"
	"golang.org/x/text/language"
)

func testSummary() *Summary {
	return &Summary{
		SessionID: "s-1",
		Levels: []LevelMetrics{
			{Index: 0, LevelID: "level-1", Status: level.StatusWin, DurationMs: 12345, Steps: 12345, OptimalPathLength: 11, Efficiency: 0.5, WallBumps: 3},
			{Index: 1, LevelID: "level-2", Status: level.StatusTimeout, DurationMs: 60000, Steps: 7, OptimalPathLength: 0},
		},
		Completed:       1,
		TotalDurationMs: 72345,
		MeanEfficiency:  0.25,
	}
}

func TestRenderer_Render(t *testing.T) {
	tests := map[string]struct {
		opts     []RendererOpt
		contains []string
	}{
		"english": {
			contains: []string{
				"Levels completed: 1 of 2",
				"Total time: 72.3 s",
				"Average path efficiency: 25%",
				"Level 1 (level-1): win",
				"moves 12,345",
				"shortest 10",
				"wall bumps 3",
				"Level 2 (level-2): fail timeout",
				"shortest 0",
				"not a diagnosis",
			},
		},
		"german": {
			opts:     []RendererOpt{WithLanguage(language.German)},
			contains: []string{"moves 12.345"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := NewRenderer(tt.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			out, err := r.Render(testSummary())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRenderer_Wraps(t *testing.T) {
	r, err := NewRenderer(WithWidth(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := r.Render(testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, line := range strings.Split(out, "\n") {
		if len(line) > 50 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
}
