package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/Josephrp/creditnexus-sub000/pkg/config"
)

// ErrConfigNotFound is returned by FindConfig when no directory up to the
// filesystem root holds a config file.
var ErrConfigNotFound = errors.New("config file not found")

// FindConfig looks upwards from startDir for config.DefaultFile and returns
// its absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, config.DefaultFile) {
			return filepath.Join(dir, config.DefaultFile), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrConfigNotFound
}

// LoadConfig loads path, or the nearest config file above the working
// directory when path is empty, or the defaults when there is none.
func LoadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	found, err := FindConfig(wd)
	if errors.Is(err, ErrConfigNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(found)
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
