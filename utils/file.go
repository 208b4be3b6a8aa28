package utils

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes content to a file atomically (write to temp, then rename).
// On any error the destination is left untouched.
func WriteFileAtomic(path string, content []byte) error {
	// Create temp file in same directory (ensures same filesystem for atomic rename)
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure temp file is cleaned up on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, bytes.NewReader(content)); err != nil {
		return err
	}

	// Sync to ensure data is written
	if err := tmpFile.Sync(); err != nil {
		return err
	}

	// Close temp file before rename
	if err := tmpFile.Close(); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// Success: clear defer cleanup
	tmpFile = nil
	return nil
}

// OutputPath builds the default output path next to the video:
// <video_basename>.<primary>-<secondary>.<ext> (e.g. "Film.zh-en.srt").
func OutputPath(videoPath, primary, secondary, ext string) string {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(dir, base+"."+primary+"-"+secondary+"."+strings.TrimPrefix(ext, "."))
}

// SanitizeFilename removes or replaces problematic characters from filenames
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)

	replacer := strings.NewReplacer(
		"<", "_",
		">", "_",
		":", "_",
		"\"", "_",
		"|", "_",
		"?", "_",
		"*", "_",
	)
	return replacer.Replace(filename)
}
