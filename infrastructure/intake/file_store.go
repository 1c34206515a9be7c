package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmap-backend/application/ports"
	pkgerrors "medmap-backend/pkg/errors"
)

// MaxUploadBytes is the largest upload the store accepts
const MaxUploadBytes = 16 << 20

// LocalFileStore keeps raw uploads on the local filesystem under a single
// directory. Stored names carry a per-upload unique prefix so concurrent
// uploads of the same filename never collide.
type LocalFileStore struct {
	baseDir  string
	maxBytes int64
	logger   *zap.Logger
}

// NewLocalFileStore creates the upload directory if it does not exist and
// returns a store rooted there
func NewLocalFileStore(baseDir string, maxBytes int64, logger *zap.Logger) (*LocalFileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}

	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving upload directory: %w", err)
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", absDir, err)
	}

	return &LocalFileStore{
		baseDir:  absDir,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Save writes an upload to disk and returns the stored path. The write goes
// through a temp file and a rename so a crash never leaves a partial upload
// under a final name.
func (s *LocalFileStore) Save(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	safe := sanitizeFilename(filename)
	storedName := fmt.Sprintf("%s_%s", uuid.New().String(), safe)
	destPath := filepath.Join(s.baseDir, storedName)

	tmpFile, err := os.CreateTemp(s.baseDir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Copy through a limited reader so an unbounded body cannot fill the disk
	limited := io.LimitReader(r, s.maxBytes+1)
	written, copyErr := io.Copy(tmpFile, limited)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing upload: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if written > s.maxBytes {
		os.Remove(tmpPath)
		return "", pkgerrors.NewDomainError(
			pkgerrors.DomainValidationError,
			"PAYLOAD_TOO_LARGE",
			fmt.Sprintf("Upload exceeds maximum size of %d bytes", s.maxBytes),
		).WithDetail("max_bytes", s.maxBytes).
			WithStatusCode(http.StatusRequestEntityTooLarge)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}

	s.logger.Debug("Upload stored",
		zap.String("userID", userID),
		zap.String("filename", filename),
		zap.String("storedPath", destPath),
		zap.Int64("sizeBytes", written),
	)

	return destPath, nil
}

// Open reads back a stored upload
func (s *LocalFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resolved, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pkgerrors.ErrDocumentNotFound.Clone().
				WithDetail("path", path)
		}
		return nil, fmt.Errorf("opening stored upload: %w", err)
	}
	return f, nil
}

// Delete removes a stored upload. Deleting a path that is already gone is
// not an error.
func (s *LocalFileStore) Delete(ctx context.Context, path string) error {
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing stored upload: %w", err)
	}

	s.logger.Debug("Upload removed", zap.String("storedPath", resolved))
	return nil
}

// ListOlderThan returns stored files last modified before the cutoff
func (s *LocalFileStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]ports.StoredFile, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	var files []ports.StoredFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Temp files from in-flight writes are not eligible
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			files = append(files, ports.StoredFile{
				Path:       filepath.Join(s.baseDir, entry.Name()),
				SizeBytes:  info.Size(),
				ModifiedAt: info.ModTime(),
			})
		}
	}

	return files, nil
}

// BaseDir returns the resolved upload directory
func (s *LocalFileStore) BaseDir() string {
	return s.baseDir
}

// resolve cleans a stored path and rejects anything outside the upload
// directory
func (s *LocalFileStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("stored path is required")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.baseDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	if resolved != s.baseDir && !strings.HasPrefix(resolved, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("stored path %q is outside the upload directory", path)
	}
	return resolved, nil
}

// sanitizeFilename reduces an upload filename to a safe base name. Path
// separators and shell-unfriendly characters are dropped, spaces become
// underscores.
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), "._-")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
