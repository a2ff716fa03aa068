package store

import (
	"context"
	"testing"

	"github.com/byokey/byokey/internal/config"
)

func TestOpenMemoryBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", s)
	}
}

func TestOpenFileBackendReturnsFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), config.StoreConfig{Backend: "file", Path: dir + "/tokens.db"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
}

func TestOpenUnknownBackendErrors(t *testing.T) {
	if _, err := Open(context.Background(), config.StoreConfig{Backend: "bogus"}); err == nil {
		t.Fatal("expected an error for an unknown store backend")
	}
}

func TestOpenBackupRequiresFileBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{
		Backend:  "memory",
		BackupS3: config.S3Backup{Enabled: true},
	})
	if err == nil {
		t.Fatal("expected an error enabling backup_s3 on a non-file backend")
	}
}
