package review

import (
	"context"
	"encoding/json"
	"path"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/auth"
	"github.com/r0gig0r/double-take/internal/core/models"
	"github.com/r0gig0r/double-take/internal/storage"
)

// SnapshotURLPrefix is the public route serving match snapshots.
const SnapshotURLPrefix = "/api/storage/matches/"

// Enricher turns raw match records into client-facing face descriptors:
// camera and best-result fields from the embedded documents, image
// dimensions from the media store, and a storage-scoped token shared by
// the whole page.
type Enricher struct {
	authSvc *auth.Service
	pool    *probePool
}

// NewEnricher creates an enricher backed by the given media store.
func NewEnricher(media storage.MediaStore, authSvc *auth.Service) *Enricher {
	return &Enricher{
		authSvc: authSvc,
		pool:    newProbePool(media),
	}
}

// Shutdown stops the probe workers.
func (e *Enricher) Shutdown() {
	e.pool.Shutdown()
}

// Enrich maps records to descriptors. Rows are processed concurrently
// but the output order matches the input order, and a failed probe only
// degrades its own row. The storage token is minted once per page, not
// once per face.
func (e *Enricher) Enrich(ctx context.Context, records []models.MatchRecord) []models.FaceDescriptor {
	descriptors := make([]models.FaceDescriptor, len(records))
	if len(records) == 0 {
		return descriptors
	}

	var token *string
	if e.authSvc.Enabled() {
		minted, err := e.authSvc.Mint(auth.RouteStorage)
		if err != nil {
			log.WithError(err).Warn("Failed to mint storage token for face page")
		} else {
			token = &minted
		}
	}

	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			descriptors[i] = e.describe(ctx, &records[i], token)
		}(i)
	}
	wg.Wait()

	return descriptors
}

// describe builds one face descriptor from one match record.
func (e *Enricher) describe(ctx context.Context, rec *models.MatchRecord, token *string) models.FaceDescriptor {
	event := rec.ParsedEvent()
	result := rec.BestResult()

	box := result.Box
	if len(box) == 0 {
		box = json.RawMessage("{}")
	}

	width, height := e.pool.dimensions(ctx, rec.Filename)

	return models.FaceDescriptor{
		ID:         rec.ID,
		Filename:   rec.Filename,
		Camera:     event.Camera,
		Timestamp:  rec.CreatedAt,
		Confidence: result.Confidence,
		Box:        box,
		File: models.FileInfo{
			Key:      path.Join(storage.MatchesPrefix, rec.Filename),
			Filename: rec.Filename,
			Width:    width,
			Height:   height,
		},
		SnapshotURL: SnapshotURLPrefix + rec.Filename,
		Token:       token,
	}
}
