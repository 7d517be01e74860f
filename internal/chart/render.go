package chart

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
)

var funcs = template.FuncMap{
	"px": func(v any) string {
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', 2, 64)
		case Number:
			return strconv.FormatFloat(float64(n), 'f', 2, 64)
		default:
			return fmt.Sprint(v)
		}
	},
	"sub": func(a, b float64) float64 { return a - b },
	"add": func(a, b float64) float64 { return a + b },
	"neg": func(a float64) float64 { return -a },
}

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" class="benchmark-chart mode-{{.Mode}}" width="{{px .Width}}" height="{{px .Height}}" viewBox="0 0 {{px .Width}} {{px .Height}}">
{{- if not .Trend.Degenerate}}
  <line class="trend" x1="{{px .Trend.X1}}" y1="{{px .Trend.Y1}}" x2="{{px .Trend.X2}}" y2="{{px .Trend.Y2}}"/>
{{- end}}
{{- range .Points}}
  <g class="{{.Class}}" transform="translate({{px .X}},{{px .Y}})">
    <title>{{.Tooltip.Title}}{{range .Tooltip.Lines}}
{{.}}{{end}}</title>
    <circle r="5" class="{{.CircleClass}}"/>
    <text dx="8" dy=".35em">{{.Label}}</text>
  </g>
{{- end}}
  <g class="axis" transform="translate(0,{{px .XAxis.Offset}})">
{{- range .XAxis.Ticks}}
    <g class="tick" transform="translate({{px .Pos}},0)"><line y2="6"/><text y="9" dy=".71em" text-anchor="middle">{{.Label}}</text></g>
{{- end}}
  </g>
  <g class="axis" transform="translate({{px .YAxis.Offset}},0)">
{{- range .YAxis.Ticks}}
    <g class="tick" transform="translate(0,{{px .Pos}})"><line x2="-6"/><text x="-9" dy=".32em" text-anchor="end">{{.Label}}</text></g>
{{- end}}
  </g>
  <text class="axis-label" text-anchor="end" x="{{px (sub .Width .YAxis.Offset)}}" y="{{px (sub .XAxis.Offset 5)}}">{{.XAxis.Title}}</text>
  <text class="axis-label" text-anchor="end" x="{{px (neg (sub .Height .XAxis.Offset))}}" y="{{px (add .YAxis.Offset 5)}}" dy=".75em" transform="rotate(-90)">{{.YAxis.Title}}</text>
</svg>
`

var svg = template.Must(template.New("chart").Funcs(funcs).Parse(svgTemplate))

// RenderSVG writes view as a standalone SVG document.
func RenderSVG(w io.Writer, view View) error {
	if err := svg.Execute(w, view); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// SVG renders view into a template.HTML value for embedding in a page.
func SVG(view View) (template.HTML, error) {
	var buf strings.Builder
	if err := RenderSVG(&buf, view); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
