package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-image-handler/internal/params"
)

// FilesystemProvider reads source images below a base directory.
type FilesystemProvider struct {
	baseDir string
	maxSize int64
}

// NewFilesystemProvider creates a provider rooted at baseDir.
// maxSize caps the bytes read per source; zero disables the cap.
func NewFilesystemProvider(baseDir string, maxSize int64) (*FilesystemProvider, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base_path required")
	}

	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base_path: %w", err)
	}

	return &FilesystemProvider{
		baseDir: absPath,
		maxSize: maxSize,
	}, nil
}

// Fetch reads the file at locator, relative to the base directory.
func (p *FilesystemProvider) Fetch(ctx context.Context, locator string) ([]byte, error) {
	path, err := resolve(p.baseDir, locator)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidLocator, locator)
	}
	if p.maxSize > 0 && info.Size() > p.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceTooLarge, info.Size())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return readLimited(f, p.maxSize)
}

// FilesystemStore keeps rendered variants as files, fanned out by the first two
// characters of the key.
type FilesystemStore struct {
	basePath string
	logger   *slog.Logger
}

// NewFilesystemStore creates a store rooted at basePath, creating it if needed.
func NewFilesystemStore(basePath string, logger *slog.Logger) (*FilesystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base_path required")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base_path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FilesystemStore{
		basePath: absPath,
		logger:   logger.With("system", "filesystem-store"),
	}, nil
}

func (s *FilesystemStore) Lookup(ctx context.Context, key params.Key) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, false, ErrPermissionDenied
		}
		return nil, false, fmt.Errorf("read file: %w", err)
	}

	return data, true, nil
}

func (s *FilesystemStore) Write(ctx context.Context, key params.Key, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil {
			s.logger.Warn("failed to remove temp file", "path", tmpPath, "error", rmErr)
		}
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

func (s *FilesystemStore) path(key params.Key) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	k := key.String()
	if len(k) < 3 {
		return filepath.Join(s.basePath, k), nil
	}
	return filepath.Join(s.basePath, k[:2], k), nil
}

// resolve joins locator onto baseDir, rejecting anything that escapes it.
func resolve(baseDir, locator string) (string, error) {
	if locator == "" {
		return "", ErrInvalidLocator
	}

	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(locator, "/")))
	parent := ".." + string(filepath.Separator)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, parent) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocator, locator)
	}

	full := filepath.Join(baseDir, cleaned)
	if full != baseDir && !strings.HasPrefix(full, baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocator, locator)
	}

	return full, nil
}
