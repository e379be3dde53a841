package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kolamai/studio/internal/models"
	"github.com/kolamai/studio/internal/services"
)

const maxUploadSize = 10 << 20 // 10 MB

type KolamController struct {
	operations *services.OperationService
	timeline   *services.TimelineStore
	kolam      *services.KolamService
	uploadDir  string
}

func NewKolamController(operations *services.OperationService, timeline *services.TimelineStore, kolam *services.KolamService) *KolamController {
	return &KolamController{
		operations: operations,
		timeline:   timeline,
		kolam:      kolam,
		uploadDir:  "uploads/kolams",
	}
}

// Analyze handles an image submission for the full analysis flow
func (kc *KolamController) Analyze(c *gin.Context) {
	filename, image, ok := kc.readUpload(c)
	if !ok {
		return
	}

	record, err := kc.operations.RunAnalysis(filename, image)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Analysis complete, render in progress",
		"record":  record,
	})
}

// Recreate handles an image submission for symmetric recreation
func (kc *KolamController) Recreate(c *gin.Context) {
	filename, image, ok := kc.readUpload(c)
	if !ok {
		return
	}

	record, err := kc.operations.RunRecreate(filename, image)
	if err != nil {
		if errors.Is(err, services.ErrRecreateInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Recreation complete",
		"record":  record,
	})
}

// Render handles a hand-authored representation document. The document is
// validated before any upstream request is issued.
func (kc *KolamController) Render(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	doc, err := models.ParseKolamDoc(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := kc.operations.RunRender(doc)
	if err != nil {
		if errors.Is(err, services.ErrRenderInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Render complete",
		"record":  record,
	})
}

// GetTimeline returns the session's operation history in append order
func (kc *KolamController) GetTimeline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"empty":   kc.timeline.IsEmpty(),
		"records": kc.timeline.Records(),
	})
}

// GetStatus returns the in-flight state for each action
func (kc *KolamController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, kc.operations.Pending())
}

// GetAPICalls returns tracked upstream kolam API calls
func (kc *KolamController) GetAPICalls(c *gin.Context) {
	calls := kc.kolam.GetAPICalls()
	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"count": len(calls),
	})
}

// ClearAPICalls clears the tracked upstream call history
func (kc *KolamController) ClearAPICalls(c *gin.Context) {
	kc.kolam.ClearAPICalls()
	c.JSON(http.StatusOK, gin.H{"message": "API call history cleared"})
}

// readUpload spools the multipart upload to disk, reads it back, and cleans
// up. Responds with the appropriate error itself when ok is false.
func (kc *KolamController) readUpload(c *gin.Context) (filename string, image []byte, ok bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return "", nil, false
	}

	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return "", nil, false
	}

	if err := os.MkdirAll(kc.uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create upload directory"})
		return "", nil, false
	}

	spooled := filepath.Join(kc.uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, spooled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return "", nil, false
	}
	defer os.Remove(spooled)

	image, err = os.ReadFile(spooled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return "", nil, false
	}

	return file.Filename, image, true
}
