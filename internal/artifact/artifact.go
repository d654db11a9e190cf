// Package artifact stores the generated QR codes and staff photos.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Kind groups artifacts into folders.
type Kind string

const (
	KindQR    Kind = "qr_codes"
	KindPhoto Kind = "staff_images"
)

// ErrExists is returned by Put when an artifact with the same name is
// already stored.
var ErrExists = errors.New("artifact already exists")

// Object points at a stored artifact. Ref is what gets persisted with the
// staff row, URL is what a browser loads and Key is backend specific.
type Object struct {
	Ref string
	URL string
	Key string
}

// Store persists artifacts.
type Store interface {
	Put(ctx context.Context, kind Kind, name string, data []byte) (Object, error)
	Remove(ctx context.Context, obj Object) error
}

// PublicURL turns a persisted reference back into something a page can link.
func PublicURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "/") {
		return ref
	}
	return "/" + ref
}

// Local writes artifacts below Root and exposes them under URLPrefix.
type Local struct {
	Root      string
	URLPrefix string
}

// NewLocal creates a disk store. Files land in root/<kind>/<name> and are
// referenced as <prefix>/<kind>/<name>.
func NewLocal(root, prefix string) *Local {
	if prefix == "" {
		prefix = "static"
	}
	return &Local{Root: root, URLPrefix: strings.Trim(prefix, "/")}
}

// Put writes data to a temp file and links it into place, so an existing
// artifact is never overwritten.
func (l *Local) Put(_ context.Context, kind Kind, name string, data []byte) (Object, error) {
	if name == "" || name != filepath.Base(name) {
		return Object{}, fmt.Errorf("artifact: invalid name %q", name)
	}
	dir := filepath.Join(l.Root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("artifact: mkdir: %w", err)
	}
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return Object{}, fmt.Errorf("artifact: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("artifact: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("artifact: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("artifact: chmod: %w", err)
	}
	err = os.Link(tmp.Name(), target)
	os.Remove(tmp.Name())
	if err != nil {
		if os.IsExist(err) {
			return Object{}, fmt.Errorf("%w: %s", ErrExists, target)
		}
		return Object{}, fmt.Errorf("artifact: link: %w", err)
	}
	ref := path.Join(l.URLPrefix, string(kind), name)
	return Object{Ref: ref, URL: PublicURL(ref), Key: target}, nil
}

// Remove deletes a previously written file. Missing files are not an error.
func (l *Local) Remove(_ context.Context, obj Object) error {
	if obj.Key == "" {
		return nil
	}
	if err := os.Remove(obj.Key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifact: remove: %w", err)
	}
	return nil
}
