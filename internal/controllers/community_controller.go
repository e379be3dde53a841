package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kolamai/studio/internal/services"
)

type CommunityController struct {
	gallery *services.GalleryService
}

func NewCommunityController(gallery *services.GalleryService) *CommunityController {
	return &CommunityController{gallery: gallery}
}

// GetGallery returns all published kolams, newest first
func (cc *CommunityController) GetGallery(c *gin.Context) {
	entries := cc.gallery.List()
	c.JSON(http.StatusOK, gin.H{
		"kolams": entries,
		"count":  len(entries),
	})
}
