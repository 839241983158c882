// Package assets publishes generated static assets such as the earnings calendar.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Publisher stores one named asset
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	Name() string
}

// EncodeJSON renders v the way assets are published: two-space indented JSON
func EncodeJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode asset: %w", err)
	}
	return data, nil
}

// FilePublisher writes the asset to a local path, creating parent directories
type FilePublisher struct {
	path string
	log  zerolog.Logger
}

// NewFilePublisher creates a file publisher for path
func NewFilePublisher(path string, log zerolog.Logger) *FilePublisher {
	return &FilePublisher{
		path: path,
		log:  log.With().Str("publisher", "file").Logger(),
	}
}

// Name returns the target path
func (p *FilePublisher) Name() string {
	return p.path
}

// Publish writes data atomically through a temp file in the same directory
func (p *FilePublisher) Publish(ctx context.Context, data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close asset: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set asset permissions: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move asset into place: %w", err)
	}

	p.log.Info().Str("path", p.path).Int("bytes", len(data)).Msg("Asset written")
	return nil
}

// PublishAll runs every publisher and joins their errors
func PublishAll(ctx context.Context, data []byte, publishers ...Publisher) error {
	var errs []error
	for _, p := range publishers {
		if err := p.Publish(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
