// Package attach stores attachment file bytes on the local filesystem,
// keyed by generated file names. Metadata lives in the database; this
// package only handles the bytes.
package attach

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps attachment files under a single directory.
type LocalStore struct {
	dir string
}

// NewLocalStore ensures the directory exists and returns a store over it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachments directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the reader's bytes under a fresh key. The hint contributes a
// recognizable prefix; the extension is derived from the MIME type.
func (s *LocalStore) Save(_ context.Context, hint, mime string, r io.Reader) (string, error) {
	key := fmt.Sprintf("%s_%s%s", sanitize(hint), uuid.NewString(), extFor(mime))

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("creating attachment file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing attachment file: %w", err)
	}
	return key, nil
}

// Open returns a reader over a stored file.
func (s *LocalStore) Open(_ context.Context, fileKey string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(fileKey)))
	if err != nil {
		return nil, fmt.Errorf("opening attachment file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, fileKey string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(fileKey)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting attachment file: %w", err)
	}
	return nil
}

func sanitize(hint string) string {
	hint = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, hint)
	if hint == "" {
		hint = "file"
	}
	return hint
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	}
	return ".bin"
}
