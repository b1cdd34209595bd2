package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/r0gig0r/double-take/internal/storage"
)

// StorageHandler serves match snapshot files from the media store.
type StorageHandler struct {
	media storage.MediaStore
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(media storage.MediaStore) *StorageHandler {
	return &StorageHandler{media: media}
}

// RegisterRoutes registers the snapshot route. The caller wraps the
// group with the storage-scope middleware.
func (h *StorageHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/storage/matches/:filename", h.GetMatchSnapshot)
}

// GetMatchSnapshot streams one snapshot file.
func (h *StorageHandler) GetMatchSnapshot(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || !h.media.Exists(filename) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(h.media.Path(filename))
}
