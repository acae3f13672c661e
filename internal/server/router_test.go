package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/spkrepo/internal/cache"
	"github.com/ralt/spkrepo/internal/projection"
	"github.com/ralt/spkrepo/internal/reconcile"
	"github.com/ralt/spkrepo/internal/repository"
	"github.com/ralt/spkrepo/internal/spk"
	"github.com/ralt/spkrepo/internal/testutil"
	"github.com/ralt/spkrepo/internal/thumbnail"
)

var fooIcon = []byte("foo icon bytes")

type testEnv struct {
	app  *fiber.App
	repo *repository.Repository
	dir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "spk")

	testutil.Package("foo", "2.0-5", "7.0-40000", false).WithIcon("PACKAGE_ICON.PNG", fooIcon).
		Write(t, dir, "foo-2.0-5[x64].spk")
	testutil.Package("foo", "2.1-1", "7.0-40000", true).WithIcon("PACKAGE_ICON.PNG", fooIcon).
		Write(t, dir, "foo-2.1-1[x64].spk")
	testutil.Package("bar", "1.0", "7.0", false).Write(t, dir, "bar_noarch.spk")
	testutil.Package("old", "0.9", "6.2", false).Write(t, dir, "old_noarch.spk")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	projector, err := projection.NewProjector(projection.Options{SiteRoot: "https://packages.example.com"})
	require.NoError(t, err)

	engine := reconcile.NewEngine(cache.NewStore(cache.Disabled, false), root, logger)
	repo := repository.New(engine, []reconcile.Source{{Directory: dir, Reader: spk.NewTarReader()}}, repository.Options{
		OsMajorCeiling: 7,
		Projector:      projector,
		Logger:         logger,
	})

	app, err := NewApp(AppOptions{
		Repository:       repo,
		Keyrings:         []string{"-----BEGIN PGP PUBLIC KEY BLOCK-----\n...\n"},
		DistributionPath: "/spk",
		Logger:           logger,
	})
	require.NoError(t, err)

	return &testEnv{app: app, repo: repo, dir: dir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeListing(t *testing.T, resp *http.Response) listing {
	t.Helper()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body listing
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestListingStableChannel(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest("GET", "/spk?arch=x64&major=7&language=enu&unique=synology_x64", nil))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decodeListing(t, resp)
	require.Len(t, body.Packages, 2)
	assert.Equal(t, "bar", body.Packages[0].Package, "noarch package matches any architecture")
	assert.Equal(t, "foo", body.Packages[1].Package)
	assert.Equal(t, "2.0-5", body.Packages[1].Version)
	assert.Equal(t, []string{"https://packages.example.com/spk/thumbnails/" + thumbnail.Key(fooIcon)}, body.Packages[1].Thumbnails)
	assert.Len(t, body.Keyrings, 1)
}

func TestListingBetaChannelFromForm(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/spk", strings.NewReader("arch=x64&major=7&package_update_channel=BETA"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body := decodeListing(t, env.do(t, req))
	require.Len(t, body.Packages, 2)
	assert.Equal(t, "2.1-1", body.Packages[1].Version)
	assert.True(t, body.Packages[1].Beta)
}

func TestListingFallsBackToNewestMajor(t *testing.T) {
	env := newTestEnv(t)

	body := decodeListing(t, env.do(t, httptest.NewRequest("GET", "/spk?arch=x64&major=9", nil)))
	require.Len(t, body.Packages, 2)
	assert.Equal(t, "bar", body.Packages[0].Package)
	assert.Equal(t, "foo", body.Packages[1].Package)

	body = decodeListing(t, env.do(t, httptest.NewRequest("GET", "/spk?arch=x64&major=6", nil)))
	require.Len(t, body.Packages, 1)
	assert.Equal(t, "old", body.Packages[0].Package)
}

func TestListingEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest("GET", "/spk?arch=armv7&major=5", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"packages":[]`)
}

func TestListingRejectsBadMajor(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest("GET", "/spk?major=seven", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestThumbnailRoute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest("GET", "/spk/thumbnails/"+thumbnail.Key(fooIcon), nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, thumbnailCacheControl, resp.Header.Get("Cache-Control"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fooIcon, data)

	resp = env.do(t, httptest.NewRequest("GET", "/spk/thumbnails/unknown.png", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthAndReload(t *testing.T) {
	env := newTestEnv(t)

	var health map[string]interface{}
	resp := env.do(t, httptest.NewRequest("GET", "/-/health", nil))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, false, health["built"])

	decodeListing(t, env.do(t, httptest.NewRequest("GET", "/spk?arch=x64&major=7", nil)))

	resp = env.do(t, httptest.NewRequest("GET", "/-/health", nil))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, true, health["built"])
	assert.Equal(t, float64(3), health["packages"])

	testutil.Package("baz", "1.0", "7.0", false).Write(t, env.dir, "baz_noarch.spk")
	resp = env.do(t, httptest.NewRequest("POST", "/-/reload", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, env.repo.Current())

	body := decodeListing(t, env.do(t, httptest.NewRequest("GET", "/spk?arch=x64&major=7", nil)))
	assert.Len(t, body.Packages, 3)
}

func TestRunReloaderRefreshes(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.repo.Snapshot(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunReloader(ctx, env.repo, 10*time.Millisecond, logrus.New())
		close(done)
	}()

	require.Eventually(t, func() bool {
		current := env.repo.Current()
		return current != nil && current != first
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reloader did not stop")
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	_, err := NewApp(AppOptions{})
	assert.Error(t, err)

	_, err = NewApp(AppOptions{Logger: logrus.New()})
	assert.Error(t, err)
}
