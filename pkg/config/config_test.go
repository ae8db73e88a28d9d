package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     string
		wantErr  error
	}{
		{
			name:     "plain value",
			contents: "API_KEY=abc123\n",
			want:     "abc123",
		},
		{
			name:     "quoted value with other keys",
			contents: "# datamine\nOTHER=1\nAPI_KEY=\"xyz-789\"\n",
			want:     "xyz-789",
		},
		{
			name:     "export prefix",
			contents: "export API_KEY=exported\n",
			want:     "exported",
		},
		{
			name:     "missing key",
			contents: "OTHER=1\n",
			wantErr:  ErrMissingAPIKey,
		},
		{
			name:     "blank key",
			contents: "API_KEY=\n",
			wantErr:  ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.contents))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.APIKey != tt.want {
				t.Errorf("Load() APIKey = %q, want %q", cfg.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err == nil {
		t.Fatal("Load() expected an error for a missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want it to wrap fs.ErrNotExist", err)
	}
}

func TestLoad_DoesNotTouchEnvironment(t *testing.T) {
	t.Setenv(KeyAPIKey, "from-env")

	cfg, err := Load(writeFile(t, "API_KEY=from-file\n"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIKey != "from-file" {
		t.Errorf("Load() APIKey = %q, want %q", cfg.APIKey, "from-file")
	}
	if got := os.Getenv(KeyAPIKey); got != "from-env" {
		t.Errorf("environment API_KEY = %q, want it unchanged", got)
	}
}
