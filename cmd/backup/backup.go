// Package backup provides the backup command.
package backup

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/resonantfield/tapedeck/internal/backup"
	"github.com/resonantfield/tapedeck/internal/backup/sources"
	"github.com/resonantfield/tapedeck/internal/backup/targets"
	"github.com/resonantfield/tapedeck/internal/conf"
)

// Command creates and returns the backup command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Perform an immediate backup of the session store and configuration",
		Long:  "Uses the configured backup destinations to create an immediate backup of the session-store database and configuration file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(settings)
		},
	}

	genKeyCmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new encryption key for backups",
		Long:  "Generate a new encryption key for securing backups. The key will be saved to the default configuration directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := backup.NewManager(&settings.Backup, log.Default())
			key, err := manager.GenerateEncryptionKey()
			if err != nil {
				return fmt.Errorf("failed to generate encryption key: %w", err)
			}
			log.Printf("Successfully generated new encryption key: %s", key)
			return nil
		},
	}

	cmd.AddCommand(genKeyCmd)
	return cmd
}

func runBackup(settings *conf.Settings) error {
	if !settings.Backup.Enabled {
		return fmt.Errorf("backup functionality is not enabled in configuration")
	}

	manager := backup.NewManager(&settings.Backup, log.Default())

	if settings.SessionStore.Driver != "sqlite" {
		log.Println("Warning: only the sqlite session store driver supports backup; skipping source registration.")
		return nil
	}

	log.Println("Initializing session store backup source...")
	sqliteSource := sources.NewSQLiteSource(settings, nil)
	if err := manager.RegisterSource(sqliteSource); err != nil {
		return fmt.Errorf("failed to register session store source: %w", err)
	}

	log.Println("Initializing backup destinations...")
	var registered int
	for _, dest := range settings.Backup.Destinations {
		target, err := buildTarget(dest)
		if err != nil {
			log.Printf("Warning: failed to initialize %s backup destination: %v", dest.Type, err)
			continue
		}
		if err := manager.RegisterTarget(target); err != nil {
			log.Printf("Warning: failed to register %s backup destination: %v", dest.Type, err)
			continue
		}
		registered++
		log.Printf("Successfully registered %s backup destination", dest.Type)
	}

	if registered == 0 {
		return fmt.Errorf("no valid backup destinations registered, backup cannot proceed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Println("Starting backup process...")
	if err := manager.RunBackup(ctx); err != nil {
		log.Printf("Backup failed: %v", err)
		return fmt.Errorf("backup failed: %w", err)
	}

	log.Println("Backup completed successfully")
	return nil
}

func buildTarget(dest conf.BackupDestinationConfig) (backup.Target, error) {
	switch dest.Type {
	case "local":
		return targets.NewLocalTarget(targets.LocalTargetConfig{Path: dest.Local.Path}, targets.GetLogger())
	case "ftp":
		return targets.NewFTPTarget(map[string]any{
			"host":     dest.FTP.Host,
			"username": dest.FTP.Username,
			"password": dest.FTP.Password,
			"path":     dest.FTP.Path,
		})
	case "sftp":
		return targets.NewSFTPTarget(map[string]any{
			"host":     dest.SFTP.Host,
			"username": dest.SFTP.Username,
			"password": dest.SFTP.Password,
			"key_file": dest.SFTP.PrivateKey,
			"path":     dest.SFTP.Path,
		}, slog.Default())
	case "gdrive":
		return targets.NewGDriveTargetFromMap(map[string]any{
			"credentials_file": dest.GoogleDrive.CredentialsFile,
			"folder_id":        dest.GoogleDrive.FolderID,
		})
	default:
		return nil, fmt.Errorf("unsupported backup destination type: %s", dest.Type)
	}
}
