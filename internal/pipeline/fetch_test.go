package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("PNGDATA"))
		case "/big":
			w.Write(make([]byte, 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client()}

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	small := &HTTPFetcher{Client: srv.Client(), MaxBytes: 1024}
	_, err = small.Fetch(context.Background(), srv.URL+"/big")
	assert.Error(t, err)
}

func TestSchemeFetcher(t *testing.T) {
	blob := fetchFunc(func(_ context.Context, ref string) ([]byte, error) { return []byte("from page " + ref), nil })
	f := SchemeFetcher{"blob": blob}

	data, err := f.Fetch(context.Background(), "blob:https://x.com/abc")
	require.NoError(t, err)
	assert.Equal(t, "from page blob:https://x.com/abc", string(data))

	_, err = f.Fetch(context.Background(), "ftp://example.com/a.png")
	assert.ErrorContains(t, err, `no fetcher for scheme "ftp"`)
}
