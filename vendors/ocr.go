package vendors

import (
	"context"
	"errors"
)

// OCR converts an image-based PGS subtitle stream into SRT text. Accuracy is
// the provider's problem; the engine only needs the SRT contract honored.
// language is a tesseract-style tag: eng, chi_sim, chi_tra, jpn, kor.
type OCR interface {
	ConvertPGS(ctx context.Context, pgsData []byte, language string) (srtData []byte, err error)
}

// ErrOCRUnavailable means no OCR provider is wired into this process.
var ErrOCRUnavailable = errors.New("no OCR provider configured")

// NoOCR is the default provider: it refuses, which makes the pipeline surface
// a track-selection error instead of silently skipping image subtitles.
type NoOCR struct{}

func (NoOCR) ConvertPGS(ctx context.Context, pgsData []byte, language string) ([]byte, error) {
	return nil, ErrOCRUnavailable
}
