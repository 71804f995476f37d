// Package asset decides whether a binary asset is inlined or emitted.
package asset

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/cespare/xxhash/v2"
)

// DefaultFilename names emitted assets by content hash.
const DefaultFilename = "[hash][ext]"

// Emitter builds AssetRecords. It holds configuration only, so the same
// bytes always produce the same record.
type Emitter struct {
	filename   string
	publicPath string
}

type Option func(*Emitter)

// WithFilename sets the output name template: [name], [ext], [hash].
func WithFilename(tmpl string) Option {
	return func(e *Emitter) {
		if tmpl != "" {
			e.filename = tmpl
		}
	}
}

// WithPublicPath sets the prefix of emitted asset URLs.
func WithPublicPath(p string) Option {
	return func(e *Emitter) {
		e.publicPath = p
	}
}

func New(opts ...Option) *Emitter {
	e := &Emitter{filename: DefaultFilename}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hash returns the 16 hex digit xxhash64 of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Emit classifies data. Sizes strictly below limit are inlined as a base64
// data URI; everything else gets a hashed file name. limit <= 0 never inlines.
func (e *Emitter) Emit(data []byte, ext string, limit int) domain.AssetRecord {
	return e.EmitNamed(data, "", ext, limit)
}

// EmitNamed is Emit with the source base name available to [name].
func (e *Emitter) EmitNamed(data []byte, name, ext string, limit int) domain.AssetRecord {
	ext = strings.ToLower(ext)
	rec := domain.AssetRecord{
		ContentHash: Hash(data),
		OriginalExt: ext,
		SizeBytes:   len(data),
		MimeType:    MimeType(ext),
	}
	if limit > 0 && len(data) < limit {
		rec.Inline = true
		rec.DataURI = "data:" + rec.MimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
		rec.URL = rec.DataURI
		return rec
	}
	if name == "" {
		name = rec.ContentHash
	}
	rec.FileName = Expand(e.filename, name, ext, rec.ContentHash)
	rec.URL = e.publicPath + rec.FileName
	return rec
}

// FileNameOnDisk strips a query-style cache buster ("a.png?123") from a name.
func FileNameOnDisk(name string) string {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		return name[:i]
	}
	return name
}

// Expand fills a [name] / [ext] / [hash] template. [ext] keeps its dot.
func Expand(tmpl, name, ext, hash string) string {
	return strings.NewReplacer("[name]", name, "[ext]", ext, "[hash]", hash).Replace(tmpl)
}

// BaseName returns the file name of p without directory and extension.
func BaseName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// MimeType looks up ext, falling back to application/octet-stream.
func MimeType(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
