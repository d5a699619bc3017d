package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("rejects relative urls", func(t *testing.T) {
		_, err := NewClient("example", "tracker.example.com")

		assert.Error(t, err)
	})

	t.Run("keeps the site name", func(t *testing.T) {
		client, err := NewClient("example", "http://tracker.example.com")
		require.NoError(t, err)

		assert.Equal(t, "example", client.Name())
	})
}

func TestClient_Stats(t *testing.T) {
	t.Run("reads and decodes stats.json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stats.json", r.URL.Path)

				_, _ = w.Write([]byte(
					`{"torrents": 10, "peersAll": 42}`))
			},
		))
		defer server.Close()

		client, err := NewClient("example", server.URL)
		require.NoError(t, err)

		stats, err := client.Stats(context.Background())
		require.NoError(t, err)

		assert.Equal(t, float64(10), stats.Values["torrents"])
		assert.Equal(t, float64(42), stats.Values["peersAll"])
		assert.WithinDuration(t,
			time.Now(), stats.CapturedAt, time.Minute)
	})

	t.Run("is idempotent against unchanged state", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(
					`{"torrents": 3, "peersAll": 7}`))
			},
		))
		defer server.Close()

		client, err := NewClient("example", server.URL)
		require.NoError(t, err)

		first, err := client.Stats(context.Background())
		require.NoError(t, err)

		second, err := client.Stats(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first.Values, second.Values)
	})

	t.Run("nothing listening is unavailability", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		client, err := NewClient("example", server.URL)
		require.NoError(t, err)

		_, err = client.Stats(context.Background())

		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("slow tracker hits the timeout", func(t *testing.T) {
		blockC := make(chan struct{})

		server := httptest.NewServer(http.HandlerFunc(
			func(http.ResponseWriter, *http.Request) {
				<-blockC
			},
		))
		defer server.Close()
		defer close(blockC)

		client, err := NewClient("example", server.URL,
			WithTimeout(50*time.Millisecond))
		require.NoError(t, err)

		begin := time.Now()
		_, err = client.Stats(context.Background())

		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Less(t, time.Since(begin), 5*time.Second)
	})

	t.Run("non-2xx status is a protocol error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		))
		defer server.Close()

		client, err := NewClient("example", server.URL)
		require.NoError(t, err)

		_, err = client.Stats(context.Background())

		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("garbage body is a protocol error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>nope</html>`))
			},
		))
		defer server.Close()

		client, err := NewClient("example", server.URL)
		require.NoError(t, err)

		_, err = client.Stats(context.Background())

		assert.ErrorIs(t, err, ErrProtocol)
	})
}
