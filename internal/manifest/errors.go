package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedManifest is matched by every *MalformedManifestError.
var ErrMalformedManifest = errors.New("malformed manifest")

// MalformedManifestError describes why a manifest was rejected.
type MalformedManifestError struct {
	File   string // manifest path, empty for in-memory input
	Line   int    // 1-based, 0 when unknown
	Entry  string // entry key, empty for document-level problems
	Field  string // dotted field path inside the entry
	Reason string
}

func (e *MalformedManifestError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	b.WriteString("malformed manifest")
	if e.Entry != "" {
		fmt.Fprintf(&b, ": entry %q", e.Entry)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *MalformedManifestError) Is(target error) bool {
	return target == ErrMalformedManifest
}

// IsMalformed reports whether err rejects a manifest.
func IsMalformed(err error) bool {
	var me *MalformedManifestError
	return errors.As(err, &me)
}
