package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/observability"
)

type note struct {
	BaseModel
	Body string
}

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: MemoryPath, LogLevel: "silent"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(&note{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Path != "ctckit.db" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 2 {
		t.Errorf("pool = %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.LogLevel != "warn" || cfg.SlowQueryThreshold != "200ms" {
		t.Errorf("log = %q/%q", cfg.LogLevel, cfg.SlowQueryThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_MemoryPinsSingleConnection(t *testing.T) {
	cfg := Config{Path: MemoryPath, MaxOpenConns: 10}
	cfg.ApplyDefaults()
	if cfg.MaxOpenConns != 1 || cfg.MaxIdleConns != 1 {
		t.Errorf("memory pool = %d/%d, want 1/1", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"idle above open", Config{Path: "x.db", MaxOpenConns: 1, MaxIdleConns: 2, ConnMaxLifetime: "1h", SlowQueryThreshold: "1s"}},
		{"bad lifetime", Config{Path: "x.db", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: "soon", SlowQueryThreshold: "1s"}},
		{"bad threshold", Config{Path: "x.db", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: "1h", SlowQueryThreshold: "fast"}},
		{"no path", Config{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	db, err := Open(context.Background(), Config{Path: path, LogLevel: "silent"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBaseModel_AssignsID(t *testing.T) {
	db := openMemory(t)
	n := note{Body: "hello"}
	if err := db.WithContext(context.Background()).Create(&n).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID == uuid.Nil {
		t.Error("expected generated ID")
	}
	var got note
	if err := db.WithContext(context.Background()).First(&got, "id = ?", n.ID).Error; err != nil {
		t.Fatalf("First: %v", err)
	}
	if got.Body != "hello" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestFromDatabase(t *testing.T) {
	db := openMemory(t)
	var n note
	err := db.WithContext(context.Background()).First(&n, "id = ?", uuid.New()).Error

	appErr := FromDatabase(err, "note", "x")
	if appErr == nil || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", appErr)
	}
	if !IsNotFoundError(err) {
		t.Error("expected IsNotFoundError")
	}
	if FromDatabase(nil, "note", "x") != nil {
		t.Error("nil error should map to nil")
	}
	if got := FromDatabase(errors.New("disk full"), "note", "x"); got.Code != apperrors.ErrCodeIO {
		t.Errorf("expected IO_ERROR, got %s", got.Code)
	}
}

func TestCheckHealth(t *testing.T) {
	db := openMemory(t)
	if h := db.CheckHealth(context.Background()); h.Status != observability.HealthStatusUp {
		t.Errorf("expected up, got %s (%s)", h.Status, h.Message)
	}
	_ = db.Close()
	if h := db.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down after close, got %s", h.Status)
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("SILENT") != gormlogger.Silent || parseLogLevel("info") != gormlogger.Info ||
		parseLogLevel("error") != gormlogger.Error || parseLogLevel("") != gormlogger.Warn {
		t.Error("unexpected level mapping")
	}
}
