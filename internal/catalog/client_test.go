package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edopro-pics/internal/domain"
)

func TestClientFetch(t *testing.T) {
	t.Run("decodes entries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[
				{"id":123,"name":"Alpha","type":"Normal Monster","card_images":[{"id":123,"image_url":"http://img/123.jpg"}]},
				{"id":456,"name":"Beta","type":"Spell Card","card_images":[{"id":456,"image_url":"http://img/456.jpg"}]}
			]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-agent", 5*time.Second)
		entries, err := client.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(123), entries[0].ID)
		assert.Equal(t, "Alpha", entries[0].Name)
		require.Len(t, entries[0].Images, 1)
		assert.Equal(t, "http://img/123.jpg", entries[0].Images[0].URL)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-agent", 5*time.Second)
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "catalog request failed")
	})

	t.Run("malformed payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": not-json`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-agent", 5*time.Second)
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
	})

	t.Run("empty catalog", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-agent", 5*time.Second)
		_, err := client.Fetch(context.Background())
		require.ErrorIs(t, err, domain.ErrEmptyCatalog)
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewClient(server.URL, "test-agent", 5*time.Second)
		_, err := client.Fetch(ctx)
		require.Error(t, err)
	})
}
