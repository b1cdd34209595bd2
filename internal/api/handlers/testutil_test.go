package handlers

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/r0gig0r/double-take/config"
	"github.com/r0gig0r/double-take/internal/api/middleware"
	"github.com/r0gig0r/double-take/internal/auth"
	"github.com/r0gig0r/double-take/internal/core/models"
	"github.com/r0gig0r/double-take/internal/database"
	"github.com/r0gig0r/double-take/internal/db/repository"
	"github.com/r0gig0r/double-take/internal/integrations/compreface"
	"github.com/r0gig0r/double-take/internal/review"
	"github.com/r0gig0r/double-take/internal/server/sse"
	"github.com/r0gig0r/double-take/internal/storage"
	"github.com/r0gig0r/double-take/internal/training"
)

type testEnv struct {
	router    *gin.Engine
	db        *gorm.DB
	repo      *repository.GormRepository
	authSvc   *auth.Service
	mediaRoot string
}

type envOptions struct {
	auth     config.AuthConfig
	provider *compreface.Client
}

// newTestEnv wires the handler stack the way the server does: temp-file
// database, disk media store, SSE hub and the auth middleware chain.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	repo := repository.NewGormRepository(db)

	mediaRoot := filepath.Join(dir, "media")
	if err := os.MkdirAll(filepath.Join(mediaRoot, storage.MatchesPrefix), 0o755); err != nil {
		t.Fatalf("failed to create matches dir: %v", err)
	}
	media := storage.NewDiskStore(config.MediaConfig{Path: mediaRoot})

	authSvc := auth.NewService(opts.auth)
	hub := sse.NewHub()
	go hub.Run()

	enricher := review.NewEnricher(media, authSvc)
	t.Cleanup(enricher.Shutdown)

	reconciler := training.NewReconciler(repo, media, opts.provider, hub)

	router := gin.New()
	api := router.Group("/api", middleware.RequireAuth(authSvc))
	NewReviewHandler(repo, enricher, reconciler, opts.provider, hub).RegisterRoutes(api)
	NewSystemHandler().RegisterRoutes(api)

	storageGroup := router.Group("/api", middleware.RequireScope(authSvc, auth.RouteStorage))
	NewStorageHandler(media).RegisterRoutes(storageGroup)

	return &testEnv{
		router:    router,
		db:        db,
		repo:      repo,
		authSvc:   authSvc,
		mediaRoot: mediaRoot,
	}
}

func (e *testEnv) seedMatch(t *testing.T, camera, name string, matched bool, confidence float64, boxWidth int, filename string, createdAt time.Time) {
	t.Helper()

	matchFlag := "0"
	if matched {
		matchFlag = "1"
	}
	box := ""
	if boxWidth > 0 {
		box = fmt.Sprintf(`,"box":{"x":10,"y":20,"width":%d,"height":80}`, boxWidth)
	}
	rec := models.MatchRecord{
		Filename:  filename,
		Event:     []byte(fmt.Sprintf(`{"camera":"%s","type":"snapshot"}`, camera)),
		Response:  []byte(fmt.Sprintf(`[{"results":[{"name":"%s","match":%s,"confidence":%g%s}]}]`, name, matchFlag, confidence, box)),
		CreatedAt: createdAt,
	}
	if err := e.db.Create(&rec).Error; err != nil {
		t.Fatalf("failed to seed match record: %v", err)
	}
}

func (e *testEnv) writeSnapshot(t *testing.T, filename string, width, height int) {
	t.Helper()
	f, err := os.Create(filepath.Join(e.mediaRoot, storage.MatchesPrefix, filename))
	if err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode snapshot: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d (body: %s)", want, w.Code, w.Body.String())
	}
}

// mockCompreFace serves the three provider endpoints the handlers use.
func mockCompreFace(t *testing.T, handler http.HandlerFunc) *compreface.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return compreface.NewClient(config.CompreFaceConfig{
		Enabled:           true,
		URL:               srv.URL,
		RecognitionAPIKey: "test-key",
		TimeoutSeconds:    5,
	})
}
