package store

import (
	"github.com/roach88/arictl/internal/canonical"
)

// canonicalText stores JSON documents canonically so identical traffic
// produces identical journals. Bodies that are not JSON, or that carry
// floats, are kept verbatim.
func canonicalText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	normalized, err := canonical.Normalize(data)
	if err != nil {
		return string(data)
	}
	return string(normalized)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
