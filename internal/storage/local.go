package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage escribe archivos bajo un directorio servido como estático.
type LocalStorage struct {
	dir       string
	urlPrefix string
}

func NewLocalStorage(dir, urlPrefix string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &LocalStorage{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// Dir devuelve el directorio raíz, usado para montar la ruta estática.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) URLPrefix() string {
	return s.urlPrefix
}

func (s *LocalStorage) Save(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path.Join(s.urlPrefix, clean), nil
}

func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.urlPrefix+"/") {
		return ErrInvalidKey
	}
	clean, err := cleanKey(strings.TrimPrefix(ref, s.urlPrefix+"/"))
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
