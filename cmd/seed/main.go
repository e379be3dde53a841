package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/kolamai/studio/internal/db"
	"github.com/kolamai/studio/internal/models"
	"github.com/kolamai/studio/internal/services"
	"github.com/kolamai/studio/internal/storage"
)

// Default starter images shown on the community page before anyone has
// published a kolam of their own.
var starterImages = []string{
	"kolam/1.jpg",
	"kolam/2.jpg",
	"kolam/3.png",
	"kolam/6.jpg",
	"kolam/7.jpg",
	"kolam/8.jpg",
	"kolam/9.jpg",
	"kolam/10.jpg",
}

type seedFile struct {
	Images []string `json:"images"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	images := starterImages
	if data, err := os.ReadFile("data/starter-kolams.json"); err == nil {
		var sf seedFile
		if err := json.Unmarshal(data, &sf); err != nil {
			log.Fatalf("❌ Failed to parse data/starter-kolams.json: %v", err)
		}
		if len(sf.Images) > 0 {
			images = sf.Images
			log.Printf("✅ Loaded %d starter images from data/starter-kolams.json", len(images))
		}
	}

	store := openStore()

	if raw, ok, err := store.Get(services.GalleryKey); err == nil && ok && raw != "" {
		log.Println("⚠️  Gallery already has content, not seeding")
		return
	}

	gallery := services.NewGalleryService(store, os.Getenv("KOLAM_API_URL"))

	entries := make([]models.GalleryEntry, 0, len(images))
	for i, image := range images {
		entries = append(entries, models.GalleryEntry{
			ID:    int64(i + 1),
			Title: fmt.Sprintf("Community Kolam #%d", i+1),
			Image: gallery.NormalizeImageURL(image),
		})
	}

	payload, err := sonic.Marshal(entries)
	if err != nil {
		log.Fatalf("❌ Failed to encode starter gallery: %v", err)
	}
	if err := store.Set(services.GalleryKey, string(payload)); err != nil {
		log.Fatalf("❌ Failed to write starter gallery: %v", err)
	}

	log.Printf("✅ Seeded gallery with %d starter kolams", len(entries))
}

func openStore() storage.KVStore {
	if os.Getenv("GALLERY_STORE") == "postgres" {
		db.Connect()
		db.AutoMigrate()
		return storage.NewGormStore(db.DB)
	}

	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "data/gallery.db"
	}
	if err := os.MkdirAll("data", 0755); err != nil {
		log.Fatalf("❌ Failed to create data directory: %v", err)
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		log.Fatalf("❌ Failed to open SQLite store at %s: %v", path, err)
	}
	return store
}
