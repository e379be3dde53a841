package models

// GalleryEntry is one published kolam in the shared community gallery.
// The list is stored as a single JSON document in the key-value store,
// newest entry first.
type GalleryEntry struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

// KVEntry backs the key-value store in Postgres deployments. A row holds
// one opaque string value, mirroring the localStorage-style contract the
// gallery is written against.
type KVEntry struct {
	Key   string `json:"key" gorm:"primaryKey;column:key"`
	Value string `json:"value" gorm:"type:text;not null"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
