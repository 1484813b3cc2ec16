package errors

import (
	"context"
	"strings"
)

// MessageSource resolves configured message overrides. The settings store
// satisfies it; it must return def when the key is absent or unreachable.
type MessageSource interface {
	String(ctx context.Context, key, def string) string
}

// Catalog maps outcome codes to human readable messages. Overrides are read
// from the settings store under "error.<KEY>"; the built-in table is used
// whenever the store has nothing usable.
type Catalog struct {
	source MessageSource
}

// NewCatalog creates a catalog backed by source. source may be nil.
func NewCatalog(source MessageSource) *Catalog {
	return &Catalog{source: source}
}

// MessageFor never returns an empty string.
func (c *Catalog) MessageFor(ctx context.Context, code int) string {
	def := fallbackMessage(code)
	if c == nil || c.source == nil {
		return def
	}

	msg := strings.TrimSpace(c.source.String(ctx, "error."+keyFor(code), def))
	if msg == "" {
		return def
	}
	return msg
}

// Resolve turns err into the (code, message) pair returned to callers. A
// DomainError carrying its own message, such as a rule denial, keeps it.
func (c *Catalog) Resolve(ctx context.Context, err error) (int, string) {
	code := CodeOf(err)
	if de, ok := As(err); ok && strings.TrimSpace(de.Message) != "" {
		return code, de.Message
	}
	return code, c.MessageFor(ctx, code)
}
