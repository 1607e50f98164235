// Package adapter provides feedspine.FeedAdapter implementations and the
// key-generation helpers adapters use to build a RecordCandidate's
// natural key (grounded on original_source's examples/08_auto_key_generation.py).
package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// KeyFromField builds a natural key directly from one field's string
// value, the common case for feeds whose upstream already hands out a
// stable id.
func KeyFromField(value string) string {
	return strings.TrimSpace(value)
}

// KeyFromURL derives a natural key from a URL, stripping the query
// string and fragment so tracking parameters don't fracture identity.
func KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("feedspine/adapter: parse url: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// KeyFromComposite joins several field values into one key with a
// delimiter unlikely to appear in any of them, for feeds whose identity
// is only unique across a combination of fields (e.g. source+external_id).
func KeyFromComposite(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// KeyFromContentHash hashes content's canonical JSON encoding, for feeds
// with no natural identifier at all where the content itself is the
// identity (content-addressed dedup).
func KeyFromContentHash(content map[string]interface{}) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("feedspine/adapter: marshal content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
