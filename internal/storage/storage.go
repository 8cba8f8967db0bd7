package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey se devuelve para claves vacías o que escapan del directorio gestionado.
var ErrInvalidKey = errors.New("invalid storage key")

// FileStorage guarda bytes y devuelve la ruta con la que se referencian.
type FileStorage interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}
