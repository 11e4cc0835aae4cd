package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Josephrp/creditnexus-sub000/pkg/config"
)

func TestFindConfig(t *testing.T) {
	// base/
	//   deal/ (creditnexus.yaml)
	//     sources/
	//       audio/
	//   empty/
	baseDir := t.TempDir()
	dealDir := filepath.Join(baseDir, "deal")
	sourcesDir := filepath.Join(dealDir, "sources")
	nestedDir := filepath.Join(sourcesDir, "audio")
	emptyDir := filepath.Join(baseDir, "empty")

	if err := os.MkdirAll(nestedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(dealDir, config.DefaultFile)
	if err := os.WriteFile(marker, []byte("fusion:\n  use_llm: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		want      string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: dealDir, want: marker},
		{name: "Start in Subdir", startPath: sourcesDir, want: marker},
		{name: "Start in Nested", startPath: nestedDir, want: marker},
		{name: "Not Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindConfig(tt.startPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrConfigNotFound) {
					t.Errorf("expected ErrConfigNotFound, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("FindConfig() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_FindsNearestFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFile), []byte("fusion:\n  use_llm: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Fusion.UseLLM {
		t.Error("expected the nearest config file to be loaded")
	}
}
