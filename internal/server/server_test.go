package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"benchsite/internal/cfg"
	"benchsite/internal/chart"
	"benchsite/internal/common"
	"benchsite/internal/metrics"
	"benchsite/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatDataset = `
frameworks:
  - name: left
    ec2: {rps: 100, projected: 100, conc: 8, latency: 0.01}
    dedicated: {rps: 500, projected: 500, conc: 8, latency: 0.01}
  - name: right
    ec2: {rps: 300, projected: 300, conc: 8, latency: 0.01}
    dedicated: {rps: 500, projected: 500, conc: 8, latency: 0.01}
`

const tinyDataset = `
frameworks:
  - name: alpha
    ec2: {rps: 100, projected: 110, conc: 8, latency: 0.01}
    dedicated: {rps: 200, projected: 210, conc: 16, latency: 0.005}
  - name: beta
    ec2: {rps: 300, projected: 290, conc: 64, latency: 0.02}
    dedicated: {rps: 600, projected: 580, conc: 128, latency: 0.004}
`

type testClock struct{ now atomic.Pointer[time.Time] }

func newTestClock(t time.Time) *testClock {
	c := &testClock{}
	c.now.Store(&t)
	return c
}

func (c *testClock) Now() time.Time { return *c.now.Load() }

func (c *testClock) Advance(d time.Duration) {
	t := c.Now().Add(d)
	c.now.Store(&t)
}

type fixture struct {
	srv     *Server
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	clock   *testClock
	store   *storage.Store
}

func testSettings() cfg.Settings {
	return cfg.Settings{
		Port:            8080,
		DatasetSource:   "embedded",
		RESTTimeout:     5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		NoticeName:      common.DefaultNoticeName,
		NoticeTTL:       24 * time.Hour,
		NoticeStore:     common.NoticeStoreCookie,
		LogLevel:        "info",
		Chart:           chart.DefaultConfig(),
	}
}

func newFixture(t *testing.T, settings cfg.Settings, store *storage.Store, opts ...func(*Options)) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	clock := newTestClock(time.Date(2013, 5, 24, 9, 0, 0, 0, time.UTC))
	if store != nil {
		store.SetClock(clock.Now)
	}

	o := Options{
		Settings: settings,
		Store:    store,
		Metrics:  metrics.NewWrapper(m),
		Gatherer: reg,
		Clock:    clock.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	srv, err := New(context.Background(), o)
	require.NoError(t, err)
	return &fixture{srv: srv, metrics: m, reg: reg, clock: clock, store: store}
}

func newBoltStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frameworks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return f.do(req)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNew_BoltStoreRequiresBackend(t *testing.T) {
	settings := testSettings()
	settings.NoticeStore = common.NoticeStoreBolt

	_, err := New(context.Background(), Options{Settings: settings})
	assert.Error(t, err)
}

func TestNew_BadSource(t *testing.T) {
	settings := testSettings()
	settings.DatasetSource = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), Options{Settings: settings, Gatherer: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestIndex_CookieNoticeLifecycle(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="deprecation-note"`)
	assert.Contains(t, rec.Body.String(), `<svg`)
	assert.Contains(t, rec.Body.String(), "68 frameworks")

	req := httptest.NewRequest(http.MethodPost, "/notice/dismiss", nil)
	req.Header.Set("Accept", "application/json")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	ck := findCookie(rec, common.DefaultNoticeName)
	require.NotNil(t, ck)
	assert.Equal(t, "1", ck.Value)
	assert.Equal(t, "/", ck.Path)
	assert.True(t, ck.Expires.Equal(f.clock.Now().Add(24*time.Hour)), "expires %v", ck.Expires)

	rec = f.get("/", &http.Cookie{Name: common.DefaultNoticeName, Value: "1"})
	assert.NotContains(t, rec.Body.String(), `id="deprecation-note"`)

	// any other value does not count as a dismissal
	rec = f.get("/", &http.Cookie{Name: common.DefaultNoticeName, Value: "0"})
	assert.Contains(t, rec.Body.String(), `id="deprecation-note"`)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.NoticesShown))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NoticesDismissed))
}

func TestDismiss_RedirectsBrowsers(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/notice/dismiss", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = f.get("/notice/dismiss")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIndex_BoltNoticeLifecycle(t *testing.T) {
	settings := testSettings()
	settings.NoticeStore = common.NoticeStoreBolt
	settings.DataPath = t.TempDir()
	f := newFixture(t, settings, newBoltStore(t))

	rec := f.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="deprecation-note"`)
	visitor := findCookie(rec, common.VisitorCookie)
	require.NotNil(t, visitor)

	req := httptest.NewRequest(http.MethodPost, "/notice/dismiss", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(visitor)
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, common.DefaultNoticeName), "bolt mode must not set the flag cookie")

	rec = f.get("/", visitor)
	assert.NotContains(t, rec.Body.String(), `id="deprecation-note"`)
	assert.Nil(t, findCookie(rec, common.VisitorCookie), "known visitor must keep its ID")

	// another visitor still sees it
	rec = f.get("/")
	assert.Contains(t, rec.Body.String(), `id="deprecation-note"`)

	f.clock.Advance(24 * time.Hour)
	rec = f.get("/", visitor)
	assert.Contains(t, rec.Body.String(), `id="deprecation-note"`)

	f.srv.purgeJob()
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FlagsPurged))
}

func TestView(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/api/view?mode=projected")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var v struct {
		Mode   string `json:"mode"`
		Points []struct {
			Name  string `json:"name"`
			Class string `json:"class"`
		} `json:"points"`
		Trend struct {
			Slope      *float64 `json:"slope"`
			Degenerate bool     `json:"degenerate"`
		} `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "projected", v.Mode)
	assert.Len(t, v.Points, 68)
	require.NotNil(t, v.Trend.Slope)
	assert.False(t, v.Trend.Degenerate)

	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)
	req := httptest.NewRequest(http.MethodGet, "/api/view?mode=projected", nil)
	req.Header.Set("If-None-Match", tag)
	rec = f.do(req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = f.get("/api/view?mode=actual")
	assert.NotEqual(t, tag, rec.Header().Get("ETag"))

	rec = f.get("/api/view?mode=sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown mode")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ViewUpdates.WithLabelValues("projected")))
}

func TestChartSVG(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/chart.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))
	assert.Contains(t, rec.Body.String(), "mode-actual")
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	req := httptest.NewRequest(http.MethodGet, "/chart.svg?mode=projected", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ChartRenders))
}

func TestFramework(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/api/frameworks/spray?mode=projected")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Framework struct {
			Name string `json:"name"`
			JVM  bool   `json:"jvm"`
		} `json:"framework"`
		Mode    string `json:"mode"`
		Tooltip struct {
			Title string   `json:"title"`
			Lines []string `json:"lines"`
		} `json:"tooltip"`
		Point struct {
			Class string `json:"class"`
			Label string `json:"label"`
		} `json:"point"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "spray", resp.Framework.Name)
	assert.True(t, resp.Framework.JVM)
	assert.Equal(t, "projected", resp.Mode)
	assert.Equal(t, "spray", resp.Tooltip.Title)
	assert.Equal(t, []string{"EC2: 34.1k rps at 256 conns", "i7: 202k rps at 256 conns"}, resp.Tooltip.Lines)
	assert.Equal(t, "spray data-point actual", resp.Point.Class)
	assert.Equal(t, "spray", resp.Point.Label)

	rec = f.get("/api/frameworks/nosuch")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrend(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/api/trend")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Mode       string   `json:"mode"`
		Slope      *float64 `json:"slope"`
		Intercept  *float64 `json:"intercept"`
		Degenerate bool     `json:"degenerate"`
		Samples    int      `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "actual", resp.Mode)
	require.NotNil(t, resp.Slope)
	assert.Greater(t, *resp.Slope, 0.0)
	assert.False(t, resp.Degenerate)
	assert.Equal(t, 68, resp.Samples)
}

func TestTrend_Degenerate(t *testing.T) {
	settings := testSettings()
	settings.DatasetSource = writeDataset(t, flatDataset)
	f := newFixture(t, settings, nil)

	rec := f.get("/api/trend?mode=projected")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slope":null`)
	assert.Contains(t, rec.Body.String(), `"intercept":null`)
	assert.Contains(t, rec.Body.String(), `"degenerate":true`)

	rec = f.get("/chart.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `class="trend"`)

	rec = f.get("/api/view")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DegenerateFits))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, testSettings(), nil)

	rec := f.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 68.0, health["frameworks"])
	assert.Equal(t, "embedded", health["source"])
	assert.Equal(t, 0.0, health["error_rate"])

	// one good load and one failed reload
	f.srv.settings.DatasetSource = filepath.Join(t.TempDir(), "missing.yaml")
	require.Error(t, f.srv.Reload(context.Background()))
	rec = f.get("/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 0.5, health["error_rate"])
	assert.Equal(t, 68.0, health["frameworks"])

	f.get("/chart.svg")
	rec = f.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chart_renders_total 1")
	assert.Contains(t, rec.Body.String(), "dataset_frameworks 68")
}

func TestReload_SnapshotFallback(t *testing.T) {
	var failing atomic.Bool
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(tinyDataset))
	}))
	defer remote.Close()

	settings := testSettings()
	settings.DatasetSource = remote.URL + "/frameworks.yaml"
	store := newBoltStore(t)
	f := newFixture(t, settings, store)
	assert.Equal(t, 2, f.srv.Chart().Dataset().Len())

	snap, found, err := store.LatestSnapshot(settings.DatasetSource)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tinyDataset, string(snap.Body))

	failing.Store(true)
	require.NoError(t, f.srv.Reload(context.Background()))
	assert.Equal(t, 2, f.srv.Chart().Dataset().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DatasetFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DatasetLoads))
}

func TestReload_FailureKeepsChart(t *testing.T) {
	path := writeDataset(t, tinyDataset)
	settings := testSettings()
	settings.DatasetSource = path
	f := newFixture(t, settings, nil)
	before := f.srv.Chart()

	require.NoError(t, os.WriteFile(path, []byte("frameworks: [\n"), 0o644))
	assert.Error(t, f.srv.Reload(context.Background()))
	assert.Same(t, before, f.srv.Chart())

	require.NoError(t, os.WriteFile(path, []byte(flatDataset), 0o644))
	require.NoError(t, f.srv.Reload(context.Background()))
	_, err := f.srv.Chart().Dataset().Lookup("left")
	assert.NoError(t, err)
}

func TestWebSocket(t *testing.T) {
	f := newFixture(t, testSettings(), nil)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var update struct {
		Mode string `json:"mode"`
		View *struct {
			Points []json.RawMessage `json:"points"`
		} `json:"view"`
		SVG   string `json:"svg"`
		Error string `json:"error"`
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"mode": "projected"}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "projected", update.Mode)
	require.NotNil(t, update.View)
	assert.Len(t, update.View.Points, 68)
	assert.Contains(t, update.SVG, "mode-projected")
	assert.Empty(t, update.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSClients))

	update.Error, update.SVG, update.View = "", "", nil
	require.NoError(t, conn.WriteJSON(map[string]string{"mode": "sideways"}))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Contains(t, update.Error, "unknown mode")
	assert.Empty(t, update.SVG)

	// a reload pushes the client's current mode
	require.NoError(t, f.srv.Reload(context.Background()))
	update.Error, update.SVG, update.View = "", "", nil
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "projected", update.Mode)
	assert.NotEmpty(t, update.SVG)
}

func TestWebSocket_KeepAlive(t *testing.T) {
	f := newFixture(t, testSettings(), nil, func(o *Options) { o.PongWait = 200 * time.Millisecond })
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// a reading client answers pings and stays connected past the deadline
	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer live.Close()
	go func() {
		for {
			if _, _, err := live.ReadMessage(); err != nil {
				return
			}
		}
	}()
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSClients))

	// a client that never reads never sends a pong and is dropped
	silent, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer silent.Close()
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.WSClients) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.WSClients) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartShutdown(t *testing.T) {
	settings := testSettings()
	settings.Port = 0
	f := newFixture(t, settings, nil)

	require.NoError(t, f.srv.Start())
	assert.Error(t, f.srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, f.srv.Shutdown(ctx))
	assert.NoError(t, f.srv.Shutdown(ctx))
}
