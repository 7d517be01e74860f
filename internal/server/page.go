package server

import (
	"bytes"
	"html/template"
	"net/http"

	"benchsite/internal/bench"
	"benchsite/internal/chart"

	"github.com/rs/zerolog/log"
)

type pageData struct {
	Chart         template.HTML
	NoticeVisible bool
	NoticeName    string
	Modes         []bench.Mode
	Frameworks    int
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Web framework benchmarks</title>
</head>
<body>
{{if .NoticeVisible}}
<div id="deprecation-note" data-flag="{{.NoticeName}}">
  <p>spray is no longer maintained and has been superseded by Akka HTTP.</p>
  <form method="post" action="/notice/dismiss"><button type="submit">Dismiss</button></form>
</div>
{{end}}
<div class="mode-switch">
{{range .Modes}}  <button data-mode="{{.}}">{{.}}</button>
{{end}}</div>
<div id="chart">{{.Chart}}</div>
<p class="caption">{{.Frameworks}} frameworks. Peak responses per second, EC2 against dedicated hardware.</p>
<script>
(function () {
  var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.svg) { document.getElementById('chart').innerHTML = msg.svg; }
  };
  document.querySelectorAll('.mode-switch button').forEach(function (b) {
    b.addEventListener('click', function () { ws.send(JSON.stringify({mode: b.dataset.mode})); });
  });
})();
</script>
</body>
</html>
`

var indexPage = template.Must(template.New("index").Parse(indexTemplate))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	n, visitor, err := s.noticeFor(w, r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	visible, err := n.Visible(r.Context(), visitor)
	if err != nil {
		// the page is still useful without the notice
		log.Warn().Err(err).Msg("failed to read notice flag")
		visible = false
	}

	v, err := s.view(bench.Actual)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	svg, err := chart.SVG(v)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = indexPage.Execute(&buf, pageData{
		Chart:         svg,
		NoticeVisible: visible,
		NoticeName:    n.Name(),
		Modes:         bench.Modes,
		Frameworks:    s.chart.Load().Dataset().Len(),
	})
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
