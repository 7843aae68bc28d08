package build

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
)

// newLogCompressor returns the compressor applied to rolled log files
// together with the suffix of the compressed files.
func newLogCompressor(name string) (rotator.Compressor, string, error) {
	suffix, ok := logCompressors[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown log compressor: %v", name)
	}

	switch name {
	case Zstd:
		// Rolled files are written once and rarely read, so trade
		// some speed for size.
		enc, err := zstd.NewWriter(
			nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			return nil, "", fmt.Errorf("unable to create zstd "+
				"encoder: %w", err)
		}

		return enc, suffix, nil

	default:
		return gzip.NewWriter(nil), suffix, nil
	}
}

// RotatingLogWriter writes the daemon log into a size bounded file. Once the
// file reaches its size limit it is compressed and a new one is started.
// Writes before InitLogRotator are dropped.
type RotatingLogWriter struct {
	mu      sync.Mutex
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates a writer without a log file. InitLogRotator
// attaches the file once the log directory is known.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator opens logFile, creating its directory, and rolls it over as
// configured by cfg. Close must be called on shutdown.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	compressor, suffix, err := newLogCompressor(cfg.Compressor)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator counts in KB, the option is in MB.
	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	rot.SetCompressor(compressor, suffix)

	r.mu.Lock()
	r.rotator = rot
	r.mu.Unlock()

	return nil
}

// Write appends b to the log file.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rotator == nil {
		return len(b), nil
	}

	return r.rotator.Write(b)
}

// Close closes the log file. Later writes are dropped.
func (r *RotatingLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rotator == nil {
		return nil
	}

	err := r.rotator.Close()
	r.rotator = nil

	return err
}
