package bench

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallDataset = `
frameworks:
  - name: alpha
    ec2: {rps: 100, projected: 110, conc: 8, latency: 0.01}
    dedicated: {rps: 200, projected: 210, conc: 16, latency: 0.005}
  - name: beta
    jvm: true
    ec2: {rps: 300, projected: 290, conc: 64, latency: 0.02}
    dedicated: {rps: 600, projected: 580, conc: 128, latency: 0.004}
`

func TestDefault(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 68, ds.Len())

	spray, err := ds.Lookup("spray")
	require.NoError(t, err)
	assert.True(t, spray.JVM)
	assert.Equal(t, 33834.0, spray.EC2.RPS)
	assert.Equal(t, 34133.0, spray.EC2.Projected)
	assert.Equal(t, 196797.0, spray.Dedicated.RPS)
	assert.Equal(t, 256, spray.Dedicated.Conc)
	assert.Equal(t, 0.00127, spray.Dedicated.Latency)

	bottle, err := ds.Lookup("bottle")
	require.NoError(t, err)
	assert.False(t, bottle.JVM)
}

func TestDefault_TrendsAreFinite(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)

	for _, mode := range Modes {
		line := ds.Trend(mode)
		assert.False(t, line.Degenerate(), mode.String())
		assert.Greater(t, line.Slope(), 0.0, mode.String())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "frameworks: [\n"},
		{"empty", "frameworks: []"},
		{"missing name", "frameworks:\n  - ec2: {rps: 1}\n"},
		{"duplicate", "frameworks:\n  - name: a\n  - name: a\n"},
		{"negative rate", "frameworks:\n  - name: a\n    ec2: {rps: -1}\n"},
		{"negative conc", "frameworks:\n  - name: a\n    dedicated: {conc: -4}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDataset_LookupUnknown(t *testing.T) {
	ds, err := Parse([]byte(smallDataset))
	require.NoError(t, err)

	_, err = ds.Lookup("gamma")
	assert.True(t, errors.Is(err, ErrUnknownFramework))
}

func TestDataset_Samples(t *testing.T) {
	ds, err := Parse([]byte(smallDataset))
	require.NoError(t, err)

	actual := ds.Samples(Actual)
	require.Len(t, actual, 2)
	assert.Equal(t, 200.0, actual[0].X)
	assert.Equal(t, 100.0, actual[0].Y)

	projected := ds.Samples(Projected)
	assert.Equal(t, 580.0, projected[1].X)
	assert.Equal(t, 290.0, projected[1].Y)

	line := ds.Trend(Actual)
	assert.InDelta(t, 0.5, line.Slope(), 1e-12)
	assert.InDelta(t, 0.0, line.Intercept(), 1e-9)
}

func TestDataset_Names(t *testing.T) {
	ds, err := Parse([]byte("frameworks:\n  - name: zeta\n  - name: alpha\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ds.Names())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Actual, false},
		{"actual", Actual, false},
		{"Projected", Projected, false},
		{" projected ", Projected, false},
		{"forecast", Actual, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownMode)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestMode_Text(t *testing.T) {
	b, err := Projected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "projected", string(b))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("projected")))
	assert.Equal(t, Projected, m)

	_, err = Mode(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "unknown", Mode(7).String())
}

func TestTooltipFor(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)
	spray, err := ds.Lookup("spray")
	require.NoError(t, err)

	tip := TooltipFor(spray, Actual)
	assert.Equal(t, "spray", tip.Title)
	assert.Equal(t, []string{"EC2: 33.8k rps at 256 conns", "i7: 197k rps at 256 conns"}, tip.Lines)

	tip = TooltipFor(spray, Projected)
	assert.Equal(t, []string{"EC2: 34.1k rps at 256 conns", "i7: 202k rps at 256 conns"}, tip.Lines)
}

func TestLoader_Embedded(t *testing.T) {
	l := NewLoader(time.Second)
	for _, src := range []string{"", SourceEmbedded} {
		ds, err := l.Load(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, 68, ds.Len())
	}
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameworks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallDataset), 0o600))

	ds, err := NewLoader(time.Second).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	_, err = NewLoader(time.Second).Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/frameworks.yaml":
			w.Header().Set("Content-Type", "application/yaml")
			w.Write([]byte(smallDataset))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l := NewLoader(2 * time.Second)

	ds, err := l.Load(context.Background(), srv.URL+"/frameworks.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	_, err = l.Load(context.Background(), srv.URL+"/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLoader_HTTPCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(smallDataset))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(time.Second).Load(ctx, srv.URL)
	assert.Error(t, err)
}
