package linedoc

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"linemap/internal/domain"
)

// ParsedCacheDir returns dir, or a directory under the system temp dir when
// dir is empty.
func ParsedCacheDir(dir string) string {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "linemap-parse-cache")
	}
	return dir
}

// Fingerprint identifies a document's exact bytes.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func parsedCachePath(cacheDir, fingerprint string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("line_parsed_%s.gob.gz", fingerprint))
}

func LoadParsedLine(cacheDir, fingerprint string) (*domain.LineInfo, string, error) {
	path := parsedCachePath(cacheDir, fingerprint)
	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, path, err
	}
	defer zr.Close()

	var info domain.LineInfo
	if err := gob.NewDecoder(zr).Decode(&info); err != nil {
		return nil, path, err
	}

	return &info, path, nil
}

func SaveParsedLine(cacheDir, fingerprint string, info *domain.LineInfo) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	path := parsedCachePath(cacheDir, fingerprint)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	zw, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		f.Close()
		return "", err
	}

	encErr := gob.NewEncoder(zw).Encode(info)
	closeErr := zw.Close()
	fileCloseErr := f.Close()
	for _, err := range []error{encErr, closeErr, fileCloseErr} {
		if err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	return path, nil
}
