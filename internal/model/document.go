package model

import "time"

// Document is the single live version of a reference entity, keyed by
// (collection, doc_id). The payload is the backend's JSON snapshot
// stored verbatim; the engine never merges, it overwrites.
type Document struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	DocID      string    `gorm:"primaryKey;size:64;column:doc_id" json:"doc_id"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

// ShadowRecord is a staged copy of a document held aside because it
// arrived while a sale was open on the terminal. At most one row exists
// per (collection, doc_id); a later update for the same id overwrites
// it. Deleted marks a staged tombstone: the sweep removes the live row
// instead of replacing it.
type ShadowRecord struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	DocID      string    `gorm:"primaryKey;size:64;column:doc_id" json:"doc_id"`
	Payload    string    `gorm:"type:text" json:"payload"`
	Deleted    bool      `gorm:"not null;default:false" json:"deleted"`
	StagedAt   time.Time `gorm:"autoUpdateTime" json:"staged_at"`
}

func (ShadowRecord) TableName() string { return "shadow_record" }

// LoadCursor remembers the last id paged through during a bulk load of
// one reference collection, so an aborted load resumes instead of
// restarting.
type LoadCursor struct {
	Collection string    `gorm:"primaryKey;size:64"`
	LastID     string    `gorm:"size:64;not null;column:last_id"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (LoadCursor) TableName() string { return "load_cursor" }
