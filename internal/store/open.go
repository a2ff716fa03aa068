package store

import (
	"context"
	"fmt"

	"github.com/byokey/byokey/internal/config"
)

// Open builds the TokenStore cfg selects (, ):
// file, postgres, or memory, optionally wrapped in a BackupDecorator when
// cfg.BackupS3 is enabled. Both `byokey serve` and the CLI subcommands that
// touch credentials directly (login/logout/status) call this so they always
// agree on which backend and encryption-at-rest secret they're reading.
func Open(ctx context.Context, cfg config.StoreConfig) (TokenStore, error) {
	var (
		base     TokenStore
		snapshot func(ctx context.Context) ([]byte, error)
	)

	switch cfg.Backend {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = "~/.byokey/tokens.db"
		}
		fs, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		base = fs
		snapshot = SnapshotFile(path)
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		base = pg
	case "memory":
		base = NewMemoryStore()
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}

	if !cfg.BackupS3.Enabled {
		return base, nil
	}
	if snapshot == nil {
		return nil, fmt.Errorf("store: backup_s3 is only supported with the file backend")
	}
	target, err := NewBackupTarget(cfg.BackupS3.Endpoint, cfg.BackupS3.AccessKey, cfg.BackupS3.SecretKey, cfg.BackupS3.UseSSL)
	if err != nil {
		return nil, err
	}
	return NewBackupDecorator(base, target, cfg.BackupS3.Bucket, "tokens.db", snapshot), nil
}
