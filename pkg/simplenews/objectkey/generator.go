package objectkey

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultExtension is used when neither the file name nor the content type yields one.
const DefaultExtension = "bin"

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(purpose string, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// TimestampGenerator produces keys of the form <purpose>_<epochMillis>.<ext>.
// Millisecond values are strictly increasing within one generator, so two
// uploads in the same millisecond still get distinct keys.
type TimestampGenerator struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewTimestampGenerator creates a generator backed by the wall clock.
func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{now: time.Now}
}

// NewTimestampGeneratorWithClock creates a generator with a custom clock.
func NewTimestampGeneratorWithClock(now func() time.Time) *TimestampGenerator {
	return &TimestampGenerator{now: now}
}

func (g *TimestampGenerator) GenerateKey(purpose string, metadata *KeyMetadata) string {
	g.mu.Lock()
	millis := g.now().UnixMilli()
	if millis <= g.last {
		millis = g.last + 1
	}
	g.last = millis
	g.mu.Unlock()

	prefix := sanitizePathComponent(purpose)
	if prefix == "" {
		prefix = "media"
	}
	return fmt.Sprintf("%s_%d.%s", prefix, millis, Extension(metadata))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(purpose string, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(purpose string, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(purpose string, metadata *KeyMetadata) string {
	return g.GenerateFunc(purpose, metadata)
}

// Extension picks the key extension: the original file name first, then the
// content type, then DefaultExtension. The result has no leading dot.
func Extension(metadata *KeyMetadata) string {
	if metadata == nil {
		return DefaultExtension
	}
	if ext := sanitizeExtension(filepath.Ext(metadata.FileName)); ext != "" {
		return ext
	}
	if metadata.ContentType != "" {
		ct := metadata.ContentType
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		if m := mimetype.Lookup(strings.TrimSpace(strings.ToLower(ct))); m != nil {
			if ext := sanitizeExtension(m.Extension()); ext != "" {
				return ext
			}
		}
	}
	return DefaultExtension
}

func sanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Helper functions for path sanitization
func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		".", "_",
	)
	return replacer.Replace(strings.ToLower(strings.TrimSpace(component)))
}
