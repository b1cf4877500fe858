package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type mapOpener map[string]string

func (m mapOpener) OpenAudioResource(_ context.Context, id string) (io.ReadCloser, error) {
	data, ok := m[id]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestFetchBuiltinFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sounds", "Rain & Storms")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "Calming Rain.mp3"), []byte("ID3rain"), 0o644)

	f := NewFetcher(root, nil, zerolog.Nop())
	data, err := f.Fetch(context.Background(), "/sounds/Rain & Storms/Calming Rain.mp3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "ID3rain" {
		t.Errorf("data = %q, want ID3rain", data)
	}
}

func TestFetchRejectsTraversal(t *testing.T) {
	f := NewFetcher(t.TempDir(), nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), "/sounds/../../etc/passwd")
	if !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("err = %v, want ErrOutsideRoot", err)
	}
}

func TestFetchStoreLocator(t *testing.T) {
	f := NewFetcher(t.TempDir(), mapOpener{"custom-1": "OggSdata"}, zerolog.Nop())
	data, err := f.Fetch(context.Background(), StoreScheme+"custom-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "OggSdata" {
		t.Errorf("data = %q, want OggSdata", data)
	}
	if _, err := f.Fetch(context.Background(), StoreScheme+"missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("missing err = %v, want ErrBlobNotFound", err)
	}

	noStore := NewFetcher(t.TempDir(), nil, zerolog.Nop())
	if _, err := noStore.Fetch(context.Background(), StoreScheme+"custom-1"); !errors.Is(err, ErrUnsupportedLocator) {
		t.Errorf("err = %v, want ErrUnsupportedLocator", err)
	}
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil, zerolog.Nop())
	data, err := f.Fetch(context.Background(), srv.URL+"/rain.mp3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "remote" {
		t.Errorf("data = %q, want remote", data)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Error("404 fetch succeeded")
	}
}

func TestFetchUnsupported(t *testing.T) {
	f := NewFetcher(t.TempDir(), nil, zerolog.Nop())
	if _, err := f.Fetch(context.Background(), "ftp://x/y.mp3"); !errors.Is(err, ErrUnsupportedLocator) {
		t.Errorf("err = %v, want ErrUnsupportedLocator", err)
	}
}
