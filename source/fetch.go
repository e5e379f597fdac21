// Package source obtains books and decoration images referenced by URL or
// local path.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"epub2pdf/config"
	"epub2pdf/utils/images"
)

// ErrFetch is returned for any input which could not be obtained or is not
// what it is expected to be.
var ErrFetch = errors.New("unable to fetch source")

type Fetcher struct {
	cfg    *config.FetchConfig
	client *http.Client
	log    *zap.Logger
	local  bool
}

type Option func(*Fetcher)

// WithLocal lets fetcher read local files and file URLs. Without it only
// http and https references are accepted.
func WithLocal() Option {
	return func(f *Fetcher) {
		f.local = true
	}
}

func NewFetcher(cfg *config.FetchConfig, log *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{cfg: cfg, client: &http.Client{}, log: log.Named("source")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether ref is http or https URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Book fetches EPUB container.
func (f *Fetcher) Book(ctx context.Context, ref string) ([]byte, error) {
	data, err := f.fetch(ctx, ref, f.cfg.BookTimeout)
	if err != nil {
		return nil, err
	}
	if !filetype.Is(data, "epub") && !filetype.Is(data, "zip") {
		return nil, fmt.Errorf("%w: %s: not an EPUB container", ErrFetch, ref)
	}
	return data, nil
}

// Image fetches raster or SVG image.
func (f *Fetcher) Image(ctx context.Context, ref string) ([]byte, error) {
	data, err := f.fetch(ctx, ref, f.cfg.ImageTimeout)
	if err != nil {
		return nil, err
	}
	if !filetype.IsImage(data) && !images.IsSVG(data) {
		return nil, fmt.Errorf("%w: %s: not an image", ErrFetch, ref)
	}
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref string, timeout time.Duration) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrFetch)
	}

	var (
		data []byte
		err  error
	)
	u, perr := url.Parse(ref)
	switch {
	case IsRemote(ref):
		data, err = f.download(ctx, ref, timeout)
	case !f.local:
		return nil, fmt.Errorf("%w: %s: only http and https sources are accepted", ErrFetch, ref)
	case perr == nil && u.Scheme == "file":
		data, err = f.read(u.Path)
	default:
		data, err = f.read(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, ref, err)
	}
	f.log.Debug("Source fetched", zap.String("ref", ref), zap.Int("bytes", len(data)))
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, ref string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxSize {
		return nil, fmt.Errorf("larger than %d bytes", f.cfg.MaxSize)
	}
	return data, nil
}

func (f *Fetcher) read(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", path)
	}
	if fi.Size() > f.cfg.MaxSize {
		return nil, fmt.Errorf("larger than %d bytes", f.cfg.MaxSize)
	}
	return os.ReadFile(path)
}
