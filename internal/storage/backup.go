package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backup writes a consistent copy of the database to backupPath. Intended for
// operator use via the backup subcommand; the service never calls it on the
// request path.
func (s *SQLiteStorage) Backup(ctx context.Context, backupPath string) error {
	if backupPath == "" {
		return fmt.Errorf("%w: backup path cannot be empty", ErrInvalidInput)
	}
	if backupPath == s.path {
		return fmt.Errorf("%w: backup path cannot be the live database", ErrInvalidInput)
	}

	backupDir := filepath.Dir(backupPath)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// VACUUM INTO produces a consistent snapshot without blocking writers in
	// WAL mode.
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", backupPath))
	if err != nil {
		return fmt.Errorf("failed to backup database: %w", err)
	}

	return nil
}
