package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kolamai/studio/internal/logger"
	"github.com/kolamai/studio/internal/models"
	"github.com/kolamai/studio/internal/storage"
)

// GalleryKey is the key under which the community gallery list is stored.
const GalleryKey = "userKolams"

// Titles given to published entries, numbered by position at write time.
const (
	GalleryLabelRendered  = "My Kolam"
	GalleryLabelRecreated = "Recreated Kolam"
)

// GalleryService converts successful render/recreate outcomes into entries
// in the durable gallery list the community view reads. Writes are
// read-modify-write over the whole list with no locking across processes;
// if two writers race, the last one wins. That matches the single-user
// local store this replaces.
type GalleryService struct {
	store   storage.KVStore
	baseURL string
}

func NewGalleryService(store storage.KVStore, baseURL string) *GalleryService {
	return &GalleryService{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Publish prepends a new entry to the stored gallery list and writes the
// whole list back. A missing or unreadable stored payload is treated as an
// empty list; publishing never fails because of what was there before.
func (gs *GalleryService) Publish(imageRef, kindLabel string) (models.GalleryEntry, error) {
	entries := gs.load()

	entry := models.GalleryEntry{
		ID:    time.Now().UnixMilli(),
		Title: fmt.Sprintf("%s #%d", kindLabel, len(entries)+1),
		Image: gs.NormalizeImageURL(imageRef),
	}

	entries = append([]models.GalleryEntry{entry}, entries...)

	payload, err := sonic.Marshal(entries)
	if err != nil {
		return models.GalleryEntry{}, fmt.Errorf("failed to encode gallery list: %w", err)
	}
	if err := gs.store.Set(GalleryKey, string(payload)); err != nil {
		return models.GalleryEntry{}, fmt.Errorf("failed to persist gallery list: %w", err)
	}

	logger.WithGallery(GalleryKey).Infof("Published %q (%d entries)", entry.Title, len(entries))
	return entry, nil
}

// List returns the stored gallery, newest first.
func (gs *GalleryService) List() []models.GalleryEntry {
	return gs.load()
}

// load reads the persisted list, failing open to empty on any problem.
func (gs *GalleryService) load() []models.GalleryEntry {
	raw, ok, err := gs.store.Get(GalleryKey)
	if err != nil {
		logger.WithGallery(GalleryKey).Warnf("Failed to read gallery list, treating as empty: %v", err)
		return []models.GalleryEntry{}
	}
	if !ok {
		return []models.GalleryEntry{}
	}

	var entries []models.GalleryEntry
	if err := sonic.Unmarshal([]byte(raw), &entries); err != nil {
		logger.WithGallery(GalleryKey).Warnf("Stored gallery list is corrupt, treating as empty: %v", err)
		return []models.GalleryEntry{}
	}
	if entries == nil {
		return []models.GalleryEntry{}
	}
	return entries
}

// NormalizeImageURL makes an image reference absolute. References that
// already carry an http scheme pass through unchanged, so applying this
// twice never double-prefixes.
func (gs *GalleryService) NormalizeImageURL(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	return gs.baseURL + "/" + strings.TrimLeft(ref, "/")
}
