package review

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/r0gig0r/double-take/config"
	"github.com/r0gig0r/double-take/internal/auth"
	"github.com/r0gig0r/double-take/internal/core/models"
	"github.com/r0gig0r/double-take/internal/storage"
)

func newTestMedia(t *testing.T) (storage.MediaStore, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, storage.MatchesPrefix), 0o755); err != nil {
		t.Fatalf("failed to create matches dir: %v", err)
	}
	return storage.NewDiskStore(config.MediaConfig{Path: root}), root
}

func writeSnapshot(t *testing.T, root, filename string, width, height int) {
	t.Helper()
	f, err := os.Create(filepath.Join(root, storage.MatchesPrefix, filename))
	if err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode snapshot: %v", err)
	}
}

func matchRecord(id uint, camera, filename string, confidence float64) models.MatchRecord {
	response := fmt.Sprintf(`[{"results":[{"name":"unknown","match":0,"confidence":%g,"box":{"x":10,"y":20,"width":120,"height":80}}]}]`, confidence)
	return models.MatchRecord{
		ID:        id,
		Filename:  filename,
		Event:     []byte(fmt.Sprintf(`{"camera":"%s"}`, camera)),
		Response:  []byte(response),
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnrich_OrderAndFields(t *testing.T) {
	media, root := newTestMedia(t)
	writeSnapshot(t, root, "a.png", 320, 240)
	writeSnapshot(t, root, "b.png", 640, 480)

	e := NewEnricher(media, auth.NewService(config.AuthConfig{Enabled: false}))
	defer e.Shutdown()

	records := []models.MatchRecord{
		matchRecord(1, "front", "a.png", 0.42),
		matchRecord(2, "back", "b.png", 0.7),
	}
	faces := e.Enrich(context.Background(), records)
	if len(faces) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(faces))
	}

	first := faces[0]
	if first.ID != 1 || first.Camera != "front" || first.Confidence != 0.42 {
		t.Errorf("unexpected first descriptor: %+v", first)
	}
	if first.File.Width != 320 || first.File.Height != 240 {
		t.Errorf("expected probed 320x240, got %dx%d", first.File.Width, first.File.Height)
	}
	if first.File.Key != "matches/a.png" {
		t.Errorf("unexpected file key %q", first.File.Key)
	}
	if first.SnapshotURL != SnapshotURLPrefix+"a.png" {
		t.Errorf("unexpected snapshot url %q", first.SnapshotURL)
	}
	if faces[1].ID != 2 || faces[1].File.Width != 640 {
		t.Errorf("output order does not follow input order: %+v", faces[1])
	}
}

func TestEnrich_MissingSnapshotDegrades(t *testing.T) {
	media, root := newTestMedia(t)
	writeSnapshot(t, root, "ok.png", 100, 50)

	e := NewEnricher(media, auth.NewService(config.AuthConfig{Enabled: false}))
	defer e.Shutdown()

	faces := e.Enrich(context.Background(), []models.MatchRecord{
		matchRecord(1, "front", "gone.png", 0.4),
		matchRecord(2, "front", "ok.png", 0.5),
	})

	if faces[0].File.Width != 0 || faces[0].File.Height != 0 {
		t.Errorf("expected 0x0 for missing snapshot, got %dx%d", faces[0].File.Width, faces[0].File.Height)
	}
	if faces[0].Filename != "gone.png" {
		t.Error("expected the face to stay listed despite the missing snapshot")
	}
	if faces[1].File.Width != 100 {
		t.Errorf("expected neighbouring row to probe normally, got width %d", faces[1].File.Width)
	}
}

func TestEnrich_SharedPageToken(t *testing.T) {
	media, root := newTestMedia(t)
	writeSnapshot(t, root, "a.png", 10, 10)
	writeSnapshot(t, root, "b.png", 10, 10)

	authSvc := auth.NewService(config.AuthConfig{Enabled: true, Secret: "test-secret", TokenTTLMinutes: 5})
	e := NewEnricher(media, authSvc)
	defer e.Shutdown()

	faces := e.Enrich(context.Background(), []models.MatchRecord{
		matchRecord(1, "front", "a.png", 0.4),
		matchRecord(2, "front", "b.png", 0.5),
	})

	if faces[0].Token == nil || faces[1].Token == nil {
		t.Fatal("expected tokens on all faces when auth is enabled")
	}
	if *faces[0].Token != *faces[1].Token {
		t.Error("expected one shared token per page")
	}
	route, err := authSvc.Verify(*faces[0].Token)
	if err != nil {
		t.Fatalf("minted token did not verify: %v", err)
	}
	if route != auth.RouteStorage {
		t.Errorf("expected storage scope, got %q", route)
	}
}

func TestEnrich_NoTokenWhenAuthDisabled(t *testing.T) {
	media, root := newTestMedia(t)
	writeSnapshot(t, root, "a.png", 10, 10)

	e := NewEnricher(media, auth.NewService(config.AuthConfig{Enabled: false}))
	defer e.Shutdown()

	faces := e.Enrich(context.Background(), []models.MatchRecord{matchRecord(1, "front", "a.png", 0.4)})
	if faces[0].Token != nil {
		t.Error("expected no token when auth is disabled")
	}
}

func TestEnrich_EmptyPage(t *testing.T) {
	media, _ := newTestMedia(t)
	e := NewEnricher(media, auth.NewService(config.AuthConfig{Enabled: false}))
	defer e.Shutdown()

	faces := e.Enrich(context.Background(), nil)
	if len(faces) != 0 {
		t.Errorf("expected empty descriptor slice, got %d", len(faces))
	}
}
