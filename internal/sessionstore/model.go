// Package sessionstore persists an index of recording sessions and project
// saves to SQLite (or MySQL) via GORM, grounded on the teacher's
// internal/datastore package (SQLiteStore/gorm.Open/auto-migration/
// pragma-tuning conventions), generalized from bird detection rows to
// recording-session and backup-run rows.
package sessionstore

import "time"

// ProjectRecord indexes one saved project file, letting the command
// surface answer "recent projects" without scanning the filesystem.
type ProjectRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Path      string    `gorm:"uniqueIndex;size:1024"`
	Name      string    `gorm:"size:255;index"`
	SavedAt   time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRecord indexes one recording session: the span of time a track
// was armed and recording, and the take file it produced.
type SessionRecord struct {
	ID         uint      `gorm:"primaryKey"`
	ProjectID  uint      `gorm:"index;constraint:OnDelete:CASCADE"`
	TrackID    uint64    `gorm:"index"`
	TrackName  string    `gorm:"size:255"`
	TakePath   string    `gorm:"size:1024"`
	StartedAt  time.Time `gorm:"index"`
	EndedAt    time.Time
	DurationS  float64
	CreatedAt  time.Time
}

// BackupRunRecord indexes one completed or failed backup attempt, so the
// command surface can show backup history without reading destination
// filesystems.
type BackupRunRecord struct {
	ID          uint      `gorm:"primaryKey"`
	ProjectPath string    `gorm:"size:1024;index"`
	Destination string    `gorm:"size:255"`
	Succeeded   bool
	Error       string `gorm:"size:1024"`
	RanAt       time.Time `gorm:"index"`
	DurationMS  int64
}
