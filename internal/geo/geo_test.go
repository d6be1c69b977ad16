package geo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "8.465700", r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"Siaka Stevens Street, Freetown, Sierra Leone"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	address, err := client.ReverseGeocode(context.Background(), 8.4657, -13.2317)
	require.NoError(t, err)
	assert.Equal(t, "Siaka Stevens Street, Freetown, Sierra Leone", address)
}

func TestReverseGeocodeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err := client.ReverseGeocode(context.Background(), 8.4657, -13.2317)
	assert.Error(t, err)
}

func TestReverseGeocodeEmptyAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":""}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	assert.Error(t, err)
}
