package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/core/models"
	"github.com/r0gig0r/double-take/internal/db/repository"
	"github.com/r0gig0r/double-take/internal/integrations/compreface"
	"github.com/r0gig0r/double-take/internal/storage"
)

var (
	// ErrValidation means filename or subject was missing.
	ErrValidation = errors.New("filename and subject are required")
	// ErrNotFound means the referenced image is absent from the media store.
	ErrNotFound = errors.New("image file not found")
	// ErrProviderNotConfigured means no recognition provider is configured.
	ErrProviderNotConfigured = errors.New("face recognition provider not configured")
	// ErrProviderUnavailable wraps network failures and timeouts talking
	// to the provider.
	ErrProviderUnavailable = errors.New("face recognition provider unreachable")
)

// Event describes a completed tag or train operation.
type Event struct {
	Type          string `json:"type"` // face_tagged | face_trained
	Subject       string `json:"subject"`
	Filename      string `json:"filename"`
	ImageID       string `json:"image_id,omitempty"`
	TrainingCount int64  `json:"training_count"`
}

// EventSink receives training events; delivery is best-effort and must
// never fail the request that produced the event.
type EventSink interface {
	PublishTrainingEvent(evt Event)
}

// Result is the success answer of a tag or train operation.
type Result struct {
	Subject       string
	ImageID       string
	TrainingCount int64
}

// Reconciler drives the tag/train workflow and keeps local bookkeeping
// consistent with the provider's training state.
type Reconciler struct {
	repo     repository.Repository
	media    storage.MediaStore
	provider *compreface.Client
	sinks    []EventSink
}

// NewReconciler creates a reconciler. provider may be nil when no
// recognition provider is configured; the train path then rejects early.
func NewReconciler(repo repository.Repository, media storage.MediaStore, provider *compreface.Client, sinks ...EventSink) *Reconciler {
	return &Reconciler{
		repo:     repo,
		media:    media,
		provider: provider,
		sinks:    sinks,
	}
}

// Tag records a human-applied label locally without contacting the
// provider. Re-tagging the same (filename, subject) is a no-op.
func (r *Reconciler) Tag(ctx context.Context, filename, subject, imageID string) (*Result, error) {
	if filename == "" || subject == "" {
		return nil, ErrValidation
	}
	return r.record(filename, subject, imageID, "face_tagged")
}

// Train submits the image to the provider's enroll endpoint and, on
// success, performs the same idempotent bookkeeping insert as Tag with
// the provider's image id. A provider failure leaves no local state.
func (r *Reconciler) Train(ctx context.Context, filename, subject string) (*Result, error) {
	if filename == "" || subject == "" {
		return nil, ErrValidation
	}
	if r.provider == nil || !r.provider.Enabled() {
		return nil, ErrProviderNotConfigured
	}
	if !r.media.Exists(filename) {
		return nil, ErrNotFound
	}

	file, err := r.media.Open(filename)
	if err != nil {
		log.WithError(err).Errorf("Failed to open %s for training", filename)
		return nil, ErrNotFound
	}
	defer file.Close()

	enrolled, err := r.provider.AddSubjectExample(ctx, subject, file, filename)
	if err != nil {
		var apiErr *compreface.APIError
		if errors.As(err, &apiErr) {
			// Provider status and message pass through untouched.
			return nil, err
		}
		log.WithError(err).Errorf("Provider call failed for subject %s", subject)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return r.record(filename, subject, enrolled.ImageID, "face_trained")
}

// record performs the idempotent insert and recomputes the subject's
// training count.
func (r *Reconciler) record(filename, subject, imageID, eventType string) (*Result, error) {
	meta, err := json.Marshal(models.TrainingMeta{ImageID: imageID, Tagged: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal training meta: %w", err)
	}

	rec := &models.TrainingRecord{
		Name:     subject,
		Filename: filename,
		Meta:     meta,
		IsActive: true,
	}

	created, err := r.repo.InsertTrainingRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to record training entry: %w", err)
	}

	count, err := r.repo.CountActiveBySubject(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to count training records: %w", err)
	}

	if created {
		r.emit(Event{
			Type:          eventType,
			Subject:       subject,
			Filename:      filename,
			ImageID:       imageID,
			TrainingCount: count,
		})
	} else {
		log.Debugf("Training record for (%s, %s) already exists, insert was a no-op", subject, filename)
	}

	return &Result{
		Subject:       subject,
		ImageID:       imageID,
		TrainingCount: count,
	}, nil
}

func (r *Reconciler) emit(evt Event) {
	for _, sink := range r.sinks {
		sink.PublishTrainingEvent(evt)
	}
}
