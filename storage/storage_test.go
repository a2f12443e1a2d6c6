package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/ctckit/errors"
	"github.com/kbukum/ctckit/logger"
	"github.com/kbukum/ctckit/storage"
	_ "github.com/kbukum/ctckit/storage/local"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := storage.Config{}
	cfg.ApplyDefaults()
	if cfg.Provider != storage.ProviderLocal || cfg.BasePath != storage.DefaultBasePath || cfg.Region != storage.DefaultRegion {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfig_ApplyDefaults_LowercasesProvider(t *testing.T) {
	for _, p := range []string{"Local", "LOCAL", "S3"} {
		cfg := storage.Config{Provider: p}
		cfg.ApplyDefaults()
		if cfg.Provider != strings.ToLower(p) {
			t.Errorf("Provider %q normalized to %q", p, cfg.Provider)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"local ok", storage.Config{Provider: "local", BasePath: "x"}, ""},
		{"s3 ok", storage.Config{Provider: "s3", Bucket: "b", Region: "r"}, ""},
		{"s3 no bucket", storage.Config{Provider: "s3", Region: "r"}, "bucket is required"},
		{"s3 half creds", storage.Config{Provider: "s3", Bucket: "b", Region: "r", AccessKey: "a"}, "must be set together"},
		{"s3 upper case", storage.Config{Provider: "S3", Bucket: "b", Region: "r"}, ""},
		{"local mixed case", storage.Config{Provider: "Local", BasePath: "x"}, ""},
		{"unknown", storage.Config{Provider: "gcs"}, "unsupported provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_Local_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := storage.New(ctx, storage.Config{Provider: "LOCAL", BasePath: t.TempDir()}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := storage.WriteBytes(ctx, st, "run/dev-best.ckpt", []byte("weights")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := storage.WriteBytes(ctx, st, "run/states-10.ckpt", []byte("w2")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	got, err := storage.ReadBytes(ctx, st, "run/dev-best.ckpt")
	if err != nil || string(got) != "weights" {
		t.Fatalf("ReadBytes = %q, %v", got, err)
	}

	files, err := st.List(ctx, "run/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 || files[0].Path != "run/dev-best.ckpt" || files[0].Size != 7 {
		t.Errorf("List = %+v", files)
	}

	if ok, _ := st.Exists(ctx, "run/states-10.ckpt"); !ok {
		t.Error("expected object to exist")
	}
	if err := st.Delete(ctx, "run/states-10.ckpt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, "run/states-10.ckpt"); err != nil {
		t.Errorf("deleting a missing object should succeed: %v", err)
	}
	if ok, _ := st.Exists(ctx, "run/states-10.ckpt"); ok {
		t.Error("expected object to be gone")
	}

	if _, err := storage.ReadBytes(ctx, st, "run/missing.ckpt"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if err := storage.WriteBytes(ctx, st, "../escape", []byte("x")); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for escaping path, got %v", err)
	}
}

func TestNew_Unregistered(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{Provider: "s3", Bucket: "b"}, nil)
	if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG for unregistered s3 backend, got %v", err)
	}
}
