package bench

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// SourceEmbedded names the dataset compiled into the binary.
const SourceEmbedded = "embedded"

// Loader resolves a dataset source: "embedded" (or empty), an http(s) URL,
// or a path to a YAML file.
type Loader struct {
	rest *resty.Client
}

// NewLoader creates a loader whose remote fetches time out after timeout.
func NewLoader(timeout time.Duration) *Loader {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/yaml, text/yaml, */*")
	return &Loader{rest: r}
}

// Load reads and validates the dataset from source.
func (l *Loader) Load(ctx context.Context, source string) (*Dataset, error) {
	data, err := l.Raw(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Raw returns the undecoded dataset document from source.
func (l *Loader) Raw(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "" || source == SourceEmbedded:
		return embeddedFrameworks, nil
	case IsRemote(source):
		return l.fetch(ctx, source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset file %s: %w", source, err)
		}
		return data, nil
	}
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := l.rest.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch dataset: status %d, body: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	log.Debug().Str("url", url).Int("bytes", len(resp.Body())).Dur("took", time.Since(start)).Msg("dataset fetched")
	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
