package results

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultWidth = 72

const summaryTemplate = `Levels completed: {{ .Completed }} of {{ len .Levels }}
Total time: {{ seconds .TotalDurationMs }}
Average path efficiency: {{ percent .MeanEfficiency }}
{{ repeat 40 "-" }}
{{- range .Levels }}
Level {{ add1 .Index }} ({{ .LevelID }}): {{ .Status | toString | replace "_" " " }}
  time {{ seconds .DurationMs }}, moves {{ num .Steps }}, shortest {{ num (sub .OptimalPathLength 1 | max 0) }}, efficiency {{ percent .Efficiency }}
  wall bumps {{ num .WallBumps }}, door bumps {{ num .DoorBumps }}, stuns {{ num .Stuns }}
{{- end }}

These figures describe this session only. They are not a diagnosis and are not compared against other participants.
`

// Renderer turns a Summary into the text shown on the results page.
type Renderer struct {
	tmpl    *template.Template
	printer *message.Printer
	width   int
}

type RendererOpt func(*Renderer)

func WithLanguage(tag language.Tag) RendererOpt {
	return func(r *Renderer) {
		r.printer = message.NewPrinter(tag)
	}
}

func WithWidth(width int) RendererOpt {
	return func(r *Renderer) {
		r.width = width
	}
}

func NewRenderer(opts ...RendererOpt) (*Renderer, error) {
	r := &Renderer{
		printer: message.NewPrinter(language.English),
		width:   DefaultWidth,
	}

	for _, opt := range opts {
		opt(r)
	}

	funcs := sprig.TxtFuncMap()
	funcs["num"] = func(n any) string { return r.printer.Sprintf("%d", n) }
	funcs["seconds"] = func(ms int64) string { return r.printer.Sprintf("%.1f s", float64(ms)/1000) }
	funcs["percent"] = func(f float64) string { return r.printer.Sprintf("%.0f%%", f*100) }

	tmpl, err := template.New("summary").Funcs(funcs).Parse(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	r.tmpl = tmpl

	return r, nil
}

func (r *Renderer) Render(s *Summary) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return wordwrap.String(buf.String(), r.width), nil
}
