package sessionstore

import (
	"time"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// RecordProjectSave upserts the project index row for path, bumping
// SavedAt to now. Call this whenever project.Save succeeds.
func (s *Store) RecordProjectSave(path, name string) error {
	now := time.Now()
	record := ProjectRecord{Path: path, Name: name, SavedAt: now}

	err := s.db.Where(ProjectRecord{Path: path}).
		Assign(ProjectRecord{Name: name, SavedAt: now}).
		FirstOrCreate(&record).Error
	if err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "record_project_save").
			Context("path", path).
			Build()
	}
	return nil
}

// RecentProjects returns up to limit most-recently-saved projects, newest
// first.
func (s *Store) RecentProjects(limit int) ([]ProjectRecord, error) {
	var records []ProjectRecord
	if err := s.db.Order("saved_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "recent_projects").
			Build()
	}
	return records, nil
}

// RecordSession inserts a completed recording-session row.
func (s *Store) RecordSession(session SessionRecord) error {
	if err := s.db.Create(&session).Error; err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "record_session").
			Context("track_id", session.TrackID).
			Build()
	}
	return nil
}

// RecordingSessions returns up to limit recording sessions for projectID,
// most recent first.
func (s *Store) RecordingSessions(projectID uint, limit int) ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.db.Where("project_id = ?", projectID).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "recording_sessions").
			Build()
	}
	return records, nil
}

// RecordBackupRun inserts a backup-attempt history row.
func (s *Store) RecordBackupRun(run BackupRunRecord) error {
	if err := s.db.Create(&run).Error; err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "record_backup_run").
			Context("destination", run.Destination).
			Build()
	}
	return nil
}

// BackupHistory returns up to limit backup-run rows for projectPath, most
// recent first.
func (s *Store) BackupHistory(projectPath string, limit int) ([]BackupRunRecord, error) {
	var records []BackupRunRecord
	err := s.db.Where("project_path = ?", projectPath).
		Order("ran_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "backup_history").
			Build()
	}
	return records, nil
}
