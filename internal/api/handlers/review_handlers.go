package handlers

import (
	"errors"
	"math"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/core/models"
	"github.com/r0gig0r/double-take/internal/db/repository"
	"github.com/r0gig0r/double-take/internal/integrations/compreface"
	"github.com/r0gig0r/double-take/internal/observability"
	"github.com/r0gig0r/double-take/internal/review"
	"github.com/r0gig0r/double-take/internal/server/sse"
	"github.com/r0gig0r/double-take/internal/training"
	"github.com/r0gig0r/double-take/internal/util/timezone"
)

// ReviewHandler serves the face review and training API.
type ReviewHandler struct {
	repo       repository.Repository
	enricher   *review.Enricher
	reconciler *training.Reconciler
	provider   *compreface.Client
	hub        *sse.Hub
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(repo repository.Repository, enricher *review.Enricher, reconciler *training.Reconciler, provider *compreface.Client, hub *sse.Hub) *ReviewHandler {
	return &ReviewHandler{
		repo:       repo,
		enricher:   enricher,
		reconciler: reconciler,
		provider:   provider,
		hub:        hub,
	}
}

// RegisterRoutes registers the review API routes.
func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/unknown-faces", h.GetUnknownFaces)
	router.POST("/tag-face", h.TagFace)
	router.POST("/train-face", h.TrainFace)
	router.GET("/subjects", h.GetSubjects)
	router.GET("/cameras", h.GetCameras)
	router.GET("/stats", h.GetStats)
	router.GET("/events", h.StreamEvents)
}

type unknownFacesQuery struct {
	Limit  int    `form:"limit,default=50"`
	Offset int    `form:"offset,default=0"`
	Camera string `form:"camera"`
	Sort   string `form:"sort,default=date_desc"`
}

// GetUnknownFaces lists unmatched faces for review, filtered and sorted.
func (h *ReviewHandler) GetUnknownFaces(c *gin.Context) {
	var query unknownFacesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	if query.Limit < 1 || query.Offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be >= 1 and offset >= 0"})
		return
	}

	sort := repository.FaceSort(query.Sort)
	switch sort {
	case repository.SortDateDesc, repository.SortDateAsc, repository.SortConfidenceDesc:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort"})
		return
	}

	records, total, err := h.repo.FindUnknownFaces(repository.FaceQuery{
		Limit:  query.Limit,
		Offset: query.Offset,
		Camera: query.Camera,
		Sort:   sort,
	})
	if err != nil {
		log.WithError(err).Error("Failed to query unknown faces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch unknown faces"})
		return
	}

	faces := h.enricher.Enrich(c.Request.Context(), records)
	observability.FacesListed.Add(float64(len(faces)))

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
		"faces":  faces,
	})
}

type tagFaceRequest struct {
	Filename string `json:"filename"`
	Subject  string `json:"subject"`
	ImageID  string `json:"image_id"`
}

// TagFace records a human-applied label without contacting the provider.
func (h *ReviewHandler) TagFace(c *gin.Context) {
	var req tagFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.reconciler.Tag(c.Request.Context(), req.Filename, req.Subject, req.ImageID)
	if err != nil {
		h.writeTrainingError(c, "tag", err)
		return
	}

	observability.TrainingRequests.WithLabelValues("tag", "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"subject":        result.Subject,
		"training_count": result.TrainingCount,
	})
}

type trainFaceRequest struct {
	Filename string `json:"filename"`
	Subject  string `json:"subject"`
}

// TrainFace submits the image to the recognition provider and records
// the bookkeeping entry on success.
func (h *ReviewHandler) TrainFace(c *gin.Context) {
	var req trainFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.reconciler.Train(c.Request.Context(), req.Filename, req.Subject)
	if err != nil {
		h.writeTrainingError(c, "train", err)
		return
	}

	observability.TrainingRequests.WithLabelValues("train", "success").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"subject":        result.Subject,
		"image_id":       result.ImageID,
		"training_count": result.TrainingCount,
	})
}

// writeTrainingError maps the reconciler error taxonomy to HTTP answers.
// Internal detail is logged, never returned.
func (h *ReviewHandler) writeTrainingError(c *gin.Context, action string, err error) {
	observability.TrainingRequests.WithLabelValues(action, "error").Inc()

	var apiErr *compreface.APIError
	switch {
	case errors.Is(err, training.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, training.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "image file not found"})
	case errors.Is(err, training.ErrProviderNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "face recognition provider not configured"})
	case errors.As(err, &apiErr):
		observability.ProviderErrors.Inc()
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
	case errors.Is(err, training.ErrProviderUnavailable):
		observability.ProviderErrors.Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "face recognition provider unreachable"})
	default:
		log.WithError(err).Errorf("Failed to %s face", action)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record " + action})
	}
}

// GetSubjects lists the provider's subjects with their trained-image
// counts. A failed count fetch degrades that subject to zero images.
func (h *ReviewHandler) GetSubjects(c *gin.Context) {
	if h.provider == nil || !h.provider.Enabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "face recognition provider not configured"})
		return
	}

	ctx := c.Request.Context()
	names, err := h.provider.Subjects(ctx)
	if err != nil {
		observability.ProviderErrors.Inc()
		log.WithError(err).Error("Failed to fetch subjects from provider")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch subjects"})
		return
	}

	subjects := make([]models.SubjectInfo, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			count, err := h.provider.SubjectFaceCount(ctx, name)
			if err != nil {
				log.WithError(err).Warnf("Failed to fetch face count for subject %s", name)
				count = 0
			}
			// The provider does not expose training timestamps.
			subjects[i] = models.SubjectInfo{Name: name, ImageCount: count, LastTrained: nil}
		}(i, name)
	}
	wg.Wait()

	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// GetCameras lists the distinct cameras with unknown faces, ascending.
func (h *ReviewHandler) GetCameras(c *gin.Context) {
	cameras, err := h.repo.ListCameras()
	if err != nil {
		log.WithError(err).Error("Failed to fetch cameras")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch cameras"})
		return
	}
	if cameras == nil {
		cameras = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

// GetStats serves the review rollup counters.
func (h *ReviewHandler) GetStats(c *gin.Context) {
	unknown, err := h.repo.CountUnknownFaces()
	if err != nil {
		log.WithError(err).Error("Failed to count unknown faces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch statistics"})
		return
	}

	trained, err := h.repo.CountDistinctActiveSubjects()
	if err != nil {
		log.WithError(err).Error("Failed to count trained subjects")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch statistics"})
		return
	}

	taggedToday, err := h.repo.CountActiveTaggedSince(timezone.StartOfDay(timezone.Now()))
	if err != nil {
		log.WithError(err).Error("Failed to count today's tags")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch statistics"})
		return
	}

	resolved, err := h.repo.CountActiveTrainingRecords()
	if err != nil {
		log.WithError(err).Error("Failed to count training records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch statistics"})
		return
	}

	c.JSON(http.StatusOK, models.ReviewStats{
		UnknownFaces:    unknown,
		TrainedSubjects: trained,
		TaggedToday:     taggedToday,
		SuccessRate:     successRate(resolved, unknown),
	})
}

// successRate is the share of unknown detections resolved by an active
// training record, as a 0-100 percentage. An empty system reports 100.
func successRate(resolved, pending int64) float64 {
	total := resolved + pending
	if total == 0 {
		return 100
	}
	return math.Round(float64(resolved)/float64(total)*1000) / 10
}
