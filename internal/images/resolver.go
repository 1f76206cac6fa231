// Package images turns uploaded images into the single reference stored on a
// product and expands that reference back into something a browser can load.
//
// A reference is one of:
//   - an inline data URI, stored verbatim
//   - a path under the public uploads prefix, e.g. /uploads/1700000000_a.png
//   - a legacy bare file name, resolved under the uploads prefix
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"scooter-shop/internal/util"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNoFileSupplied is returned when neither bytes nor a reference were given
var ErrNoFileSupplied = errors.New("no file supplied")

// unsafeChars covers everything that would need escaping in a URL path
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Upload is an image as received from a client: raw bytes with their
// original file name, or an existing reference (data URI or stored path).
type Upload struct {
	Filename  string
	Data      []byte
	Reference string
}

// Resolver normalizes uploads into canonical references
type Resolver struct {
	storage  Storage
	prefix   string
	fallback string
	now      func() time.Time
}

// NewResolver creates a resolver publishing files under prefix (e.g. "/uploads")
func NewResolver(storage Storage, prefix, fallback string) *Resolver {
	return &Resolver{
		storage:  storage,
		prefix:   "/" + strings.Trim(prefix, "/"),
		fallback: fallback,
		now:      time.Now,
	}
}

// IsInline reports whether ref is an inline data URI
func IsInline(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:")
}

// Store returns the canonical reference for up. Raw bytes are written to
// storage; references are kept as they are.
func (r *Resolver) Store(ctx context.Context, up Upload) (string, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.Store")
	defer span.End()

	if len(up.Data) == 0 {
		ref := strings.TrimSpace(up.Reference)
		if ref == "" {
			return "", ErrNoFileSupplied
		}
		source := "reference"
		if IsInline(ref) {
			source = "inline"
		}
		span.SetAttributes(util.ImageSourceKey.String(source))
		util.ImagesStoredTotal.WithLabelValues(source).Inc()
		return ref, nil
	}

	mtype := mimetype.Detect(up.Data)
	name := r.fileName(up.Filename, mtype)
	if err := r.storage.Put(ctx, name, up.Data, mtype.String()); err != nil {
		return "", fmt.Errorf("store image %s: %w", name, err)
	}

	span.SetAttributes(util.ImageSourceKey.String("file"))
	util.ImagesStoredTotal.WithLabelValues("file").Inc()
	return r.prefix + "/" + name, nil
}

// fileName builds "<unixnano>_<original>" with every run of characters outside
// [A-Za-z0-9._-] replaced by "_", adding an extension from the sniffed type
// when the original has none.
func (r *Resolver) fileName(original string, mtype *mimetype.MIME) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "image"
	}
	base = unsafeChars.ReplaceAllString(base, "_")
	if filepath.Ext(base) == "" {
		base += mtype.Extension()
	}
	return fmt.Sprintf("%d_%s", r.now().UnixNano(), base)
}

// Resolve expands a stored reference into a client-facing one
func (r *Resolver) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return r.fallback
	case IsInline(ref):
		return ref
	case strings.HasPrefix(ref, "/"), strings.Contains(ref, "://"):
		return ref
	case strings.Contains(ref, "/"):
		return "/" + ref
	default:
		return r.prefix + "/" + ref
	}
}

// Open returns the stored bytes for a file name under the uploads prefix
func (r *Resolver) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) {
		return nil, "", ErrNotStored
	}
	return r.storage.Open(ctx, filename)
}

// Prefix is the public path files are served under
func (r *Resolver) Prefix() string {
	return r.prefix
}
