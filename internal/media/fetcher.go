package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/telemetry"
)

var (
	// ErrUnsupportedLocator is returned for locators no source understands.
	ErrUnsupportedLocator = errors.New("unsupported resource locator")

	// ErrOutsideRoot is returned for file locators escaping the sounds directory.
	ErrOutsideRoot = errors.New("locator escapes sounds directory")
)

// ResourceOpener opens uploaded sounds by id.
type ResourceOpener interface {
	OpenAudioResource(ctx context.Context, id string) (io.ReadCloser, error)
}

// Fetcher loads the encoded bytes behind a sound locator:
//
//	store://<id>       uploaded sound, read through the resource store
//	/sounds/...        built-in file below the sounds directory
//	http(s)://...      remote file
type Fetcher struct {
	soundsDir string
	store     ResourceOpener
	client    *http.Client
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher. store may be nil when uploads are disabled.
func NewFetcher(soundsDir string, store ResourceOpener, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		soundsDir: soundsDir,
		store:     store,
		client:    &http.Client{},
		logger:    logging.Component(logger, "fetcher"),
	}
}

// Fetch reads the whole resource. There is no timeout beyond ctx.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	rc, err := f.open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}
	telemetry.FetchBytes.Add(float64(len(data)))
	f.logger.Debug().Str("locator", locator).Int("bytes", len(data)).Msg("resource fetched")
	return data, nil
}

func (f *Fetcher) open(ctx context.Context, locator string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(locator, StoreScheme):
		if f.store == nil {
			return nil, fmt.Errorf("%s: %w", locator, ErrUnsupportedLocator)
		}
		return f.store.OpenAudioResource(ctx, strings.TrimPrefix(locator, StoreScheme))

	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", locator, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode)
		}
		return resp.Body, nil

	case strings.HasPrefix(locator, "/"):
		path, err := f.localPath(locator)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", locator, err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("%s: %w", locator, ErrUnsupportedLocator)
}

func (f *Fetcher) localPath(locator string) (string, error) {
	root, err := filepath.Abs(f.soundsDir)
	if err != nil {
		return "", fmt.Errorf("resolve sounds directory: %w", err)
	}
	full := filepath.Join(root, filepath.FromSlash(locator))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", locator, ErrOutsideRoot)
	}
	return full, nil
}
