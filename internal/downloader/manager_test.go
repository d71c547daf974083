package downloader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edopro-pics/internal/catalog"
	"edopro-pics/internal/domain"
	"edopro-pics/internal/imagefile"
	"edopro-pics/internal/report"
)

func testCatalogEntries(imageBase string) []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{
			ID: 1, Name: "Alpha", Type: "Effect Monster",
			Images: []domain.CardImage{{ID: 11, URL: imageBase + "/11.jpg"}},
		},
		{
			ID: 2, Name: "Beta", Type: "Normal Monster",
			Images: []domain.CardImage{{ID: 21, URL: imageBase + "/21.jpg"}},
		},
		{
			ID: 500, Name: "Wasteland", Type: "Spell Card (Field)",
			Images: []domain.CardImage{{
				ID:         501,
				URL:        imageBase + "/501.jpg",
				CroppedURL: imageBase + "/501c.jpg",
			}},
		},
	}
}

func serveCatalog(t *testing.T, entries []domain.CatalogEntry) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Data []domain.CatalogEntry `json:"data"`
		}{Data: entries}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T, catalogURL string) Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)

	m := NewManager(Config{
		Catalog:   catalog.NewClient(catalogURL, "test-agent", 5*time.Second),
		Reports:   report.NewWriter(t.TempDir()),
		UserAgent: "test-agent",
		Logger:    logger,
	})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Shutdown)
	return m
}

func makePicsDir(t *testing.T) string {
	t.Helper()
	picsDir := filepath.Join(t.TempDir(), "pics")
	require.NoError(t, os.Mkdir(picsDir, 0o755))
	return picsDir
}

func waitFinished(t *testing.T, m Manager) domain.StatusSnapshot {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		snap := m.Status()
		if snap.Finished {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return domain.StatusSnapshot{}
}

func TestManagerRun(t *testing.T) {
	payload := jpegFixture()

	t.Run("completes a run including field crops", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(payload)
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir, Concurrency: 4}))
		snap := waitFinished(t, m)

		assert.Equal(t, 4, snap.Total, "three card images plus one field crop")
		assert.Equal(t, 4, snap.Processed)
		assert.Zero(t, snap.Skipped)
		assert.Zero(t, snap.Errors)

		for _, name := range []string{"11.jpg", "21.jpg", "501.jpg"} {
			assert.True(t, imagefile.IsValidJPEG(filepath.Join(picsDir, name)), name)
		}
		assert.True(t, imagefile.IsValidJPEG(filepath.Join(picsDir, domain.FieldSubfolder, "500.jpg")),
			"field crop is named after the card id")

		require.NotNil(t, snap.Report)
		_, err := os.Stat(snap.Report.JSON)
		assert.NoError(t, err)
	})

	t.Run("adopts the pics child of a parent directory", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(payload)
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: filepath.Dir(picsDir)}))
		snap := waitFinished(t, m)

		assert.Equal(t, 4, snap.Processed)
		assert.True(t, imagefile.IsValidJPEG(filepath.Join(picsDir, "11.jpg")))
	})

	t.Run("skips existing files with only missing", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(payload)
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)
		require.NoError(t, os.WriteFile(filepath.Join(picsDir, "11.jpg"), payload, 0o644))

		require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir, OnlyMissing: true}))
		snap := waitFinished(t, m)

		assert.Equal(t, 3, snap.Total, "present file filtered before dispatch")
		assert.Equal(t, 3, snap.Processed)
		assert.Zero(t, snap.Errors)
	})

	t.Run("all images already downloaded", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no download should be attempted")
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)
		require.NoError(t, os.Mkdir(filepath.Join(picsDir, domain.FieldSubfolder), 0o755))
		for _, name := range []string{"11.jpg", "21.jpg", "501.jpg"} {
			require.NoError(t, os.WriteFile(filepath.Join(picsDir, name), payload, 0o644))
		}
		require.NoError(t, os.WriteFile(filepath.Join(picsDir, domain.FieldSubfolder, "500.jpg"), payload, 0o644))

		require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir, OnlyMissing: true}))
		snap := waitFinished(t, m)

		assert.Zero(t, snap.Total)
		assert.Zero(t, snap.Processed)
		assert.Nil(t, snap.Report, "an empty run writes no report")
	})

	t.Run("failed tasks are counted and reported", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/21.jpg" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(payload)
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir, MaxRetries: 1}))
		snap := waitFinished(t, m)

		assert.Equal(t, 4, snap.Total)
		assert.Equal(t, 3, snap.Processed)
		assert.Equal(t, 1, snap.Errors)
		assert.Equal(t, snap.Total, snap.Processed+snap.Skipped+snap.Errors)
	})

	t.Run("rejects a second concurrent run", func(t *testing.T) {
		release := make(chan struct{})
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir}))
		require.ErrorIs(t, m.StartRun(RunOptions{PicsDir: picsDir}), domain.ErrAlreadyRunning)

		m.Cancel()
		close(release)
		snap := waitFinished(t, m)
		assert.Zero(t, snap.Errors, "cancelled tasks are not errors")
	})

	t.Run("catalog failure surfaces as api error", func(t *testing.T) {
		cat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(cat.Close)
		m := newTestManager(t, cat.URL)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: makePicsDir(t)}))
		snap := waitFinished(t, m)

		assert.NotEmpty(t, snap.APIError)
		assert.Zero(t, snap.Total)
	})

	t.Run("invalid pics dir aborts before any network", func(t *testing.T) {
		cat := serveCatalog(t, nil)
		m := newTestManager(t, cat.URL)

		require.NoError(t, m.StartRun(RunOptions{PicsDir: filepath.Join(t.TempDir(), "nope")}))
		snap := waitFinished(t, m)

		assert.Zero(t, snap.Total)
		require.NotEmpty(t, snap.Logs)
		assert.Equal(t, domain.LogError, snap.Logs[len(snap.Logs)-1].Level)
	})
}

func TestManagerPauseResume(t *testing.T) {
	payload := jpegFixture()
	images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	})
	cat := serveCatalog(t, testCatalogEntries(images.URL))
	m := newTestManager(t, cat.URL)
	picsDir := makePicsDir(t)

	require.NoError(t, m.StartRun(RunOptions{PicsDir: picsDir}))
	m.Pause()
	assert.True(t, m.Status().Paused)
	m.Resume()
	assert.False(t, m.Status().Paused)

	snap := waitFinished(t, m)
	assert.Equal(t, 4, snap.Processed)
}

func TestManagerPreview(t *testing.T) {
	payload := jpegFixture()

	t.Run("counts without downloading", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("preview must not download images")
		})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)
		picsDir := makePicsDir(t)
		require.NoError(t, os.WriteFile(filepath.Join(picsDir, "11.jpg"), payload, 0o644))

		preview, err := m.Preview(context.Background(), RunOptions{PicsDir: picsDir, OnlyMissing: true})
		require.NoError(t, err)
		assert.Equal(t, 3, preview.TotalCards)
		assert.Equal(t, 4, preview.TotalTasks)
		assert.Equal(t, 3, preview.ToDownload)
	})

	t.Run("invalid pics dir", func(t *testing.T) {
		cat := serveCatalog(t, nil)
		m := newTestManager(t, cat.URL)

		_, err := m.Preview(context.Background(), RunOptions{PicsDir: filepath.Join(t.TempDir(), "nope")})
		require.ErrorIs(t, err, domain.ErrInvalidPicsDir)
	})

	t.Run("type filter narrows the preview", func(t *testing.T) {
		images := serveJPEG(t, func(w http.ResponseWriter, r *http.Request) {})
		cat := serveCatalog(t, testCatalogEntries(images.URL))
		m := newTestManager(t, cat.URL)

		preview, err := m.Preview(context.Background(), RunOptions{PicsDir: makePicsDir(t), TypeFilter: "monster"})
		require.NoError(t, err)
		assert.Equal(t, 2, preview.TotalCards)
		assert.Equal(t, 2, preview.TotalTasks)
	})
}
