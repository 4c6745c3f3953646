package wgconf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load reads and decodes the configuration file at path.
func Load(path string) (*Configuration, error) {
	return LoadContext(context.Background(), path)
}

func LoadContext(ctx context.Context, path string) (*Configuration, error) {
	cfg, _, err := LoadExtended[None](ctx, path, noExtension{})
	return cfg, err
}

// LoadExtended reads the file at path with an extended reader.
func LoadExtended[X any](ctx context.Context, path string, ext Extension[X]) (*Configuration, X, error) {
	var zero X
	f, err := os.Open(path)
	if err != nil {
		return nil, zero, err
	}
	defer f.Close()

	return NewExtendedReader(f, ext).ReadContext(ctx)
}

// Save writes c to path, replacing any existing file.
func (c *Configuration) Save(path string) error {
	return c.SaveContext(context.Background(), path)
}

func (c *Configuration) SaveContext(ctx context.Context, path string) error {
	return SaveExtended(ctx, path, c, None{}, noExtension{})
}

// SaveExtended encodes cfg with an extended writer and stores it at path.
// The file is written next to path and renamed over it, with mode 0600.
func SaveExtended[X any](ctx context.Context, path string, cfg *Configuration, extra X, ext Extension[X]) error {
	var buf bytes.Buffer
	if err := NewExtendedWriter(&buf, ext).Write(cfg, extra); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(path, &buf)
}

// WriteFile replaces path with data the same way Save does.
func WriteFile(path string, data []byte) error {
	return writeFileAtomic(path, bytes.NewReader(data))
}

func writeFileAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
