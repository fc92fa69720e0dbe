// Package restore provides the restore command: decrypting a backup
// archive produced by the backup command back into a plain .tar.gz.
package restore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/resonantfield/tapedeck/internal/backup"
	"github.com/resonantfield/tapedeck/internal/conf"
)

// gzipMagic is the two-byte header every gzip stream starts with; the
// backup manager writes a plain .tar.gz when encryption is off, so its
// presence means the archive needs no decryption.
var gzipMagic = []byte{0x1f, 0x8b}

// Command creates and returns the restore command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup archive",
		Long:  "Restore command handles decryption of backup archives created by the backup command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("please specify a subcommand: decrypt")
		},
	}

	var outputPath string
	decryptCmd := &cobra.Command{
		Use:   "decrypt [backup file]",
		Short: "Decrypt an encrypted backup archive",
		Long:  "Decrypt an encrypted backup archive using the configured encryption key, producing a plain .tar.gz.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecrypt(settings, args[0], outputPath)
		},
	}
	decryptCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path for the decrypted archive (default: same directory as source, .tar.gz extension)")

	cmd.AddCommand(decryptCmd)
	return cmd
}

func runDecrypt(settings *conf.Settings, archivePath string, outputPath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	if len(data) >= 2 && data[0] == gzipMagic[0] && data[1] == gzipMagic[1] {
		log.Printf("archive is not encrypted, no decryption needed: %s", archivePath)
		return nil
	}

	// Encryption is required to read the key from the configured location;
	// the backup's own encryption setting doesn't need to match since we
	// only use the manager to locate and validate the key.
	settings.Backup.Encryption = true
	manager := backup.NewManager(&settings.Backup, log.Default())

	if err := manager.ValidateEncryption(); err != nil {
		return fmt.Errorf("encryption key validation failed: %w", err)
	}

	decrypted, err := manager.DecryptData(data)
	if err != nil {
		return fmt.Errorf("failed to decrypt archive: %w", err)
	}

	if outputPath == "" {
		dir := filepath.Dir(archivePath)
		base := filepath.Base(archivePath)
		if ext := filepath.Ext(base); ext != "" && ext != ".gz" {
			base = base[:len(base)-len(ext)]
		}
		outputPath = filepath.Join(dir, base+".tar.gz")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, decrypted, 0o600); err != nil {
		return fmt.Errorf("failed to write decrypted archive: %w", err)
	}

	log.Printf("decrypted backup archive written to: %s", outputPath)
	return nil
}
