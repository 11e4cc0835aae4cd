package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// TempFilePrefix prefixes the temporary files of atomic writes. The inbox
// ignores files carrying it.
const TempFilePrefix = "creditnexus-tmp-"

// writeFileAtomic writes to a temp file in the target directory and renames
// it over filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}

// SaveRecord writes rec atomically. The format follows the extension:
// .yaml and .yml write YAML, anything else JSON. Keys are the JSON field
// names in both formats.
func SaveRecord(path string, rec *core.CreditAgreementData) error {
	if rec == nil {
		return fmt.Errorf("save %s: %w", path, core.Invalid("record", "missing"))
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if isYAML(path) {
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		data = buf.Bytes()
	} else {
		data = append(data, '\n')
	}
	return writeFileAtomic(path, data, 0o644)
}

// LoadRecord reads a record written by SaveRecord (or by hand).
func LoadRecord(path string) (*core.CreditAgreementData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	var rec core.CreditAgreementData
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, &core.ValidationError{Field: "record", Reason: err.Error()})
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rec, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func yamlToJSON(data []byte) ([]byte, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, &core.ValidationError{Field: "record", Reason: err.Error()}
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, &core.ValidationError{Field: "record", Reason: err.Error()}
	}
	return out, nil
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
