// Package normalize sanitizes raw collector events into canonical form.
//
// Normalization is a pure transform: it repairs timestamps, replaces PII
// meta fields with one-way hashes, and truncates oversized values. Malformed
// input degrades to safe defaults; it never fails.
package normalize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kalambet/nudge/internal/storage"
)

// Meta keys treated as PII and replaced with a keyed hash.
var piiKeys = []string{"email", "user_email", "username", "name", "full_name"}

const (
	maxTitleLen = 100
	maxMetaLen  = 1000
)

// RawEvent is the ingestion-boundary shape before sanitization. Timestamp is
// kept as a string so a malformed value can be repaired instead of rejected
// by the JSON decoder.
type RawEvent struct {
	UserID    string            `json:"user_id"`
	EventID   string            `json:"event_id"`
	Timestamp string            `json:"timestamp"`
	Type      string            `json:"type"`
	Meta      map[string]string `json:"meta"`
}

// Normalizer holds the PII hashing configuration.
type Normalizer struct {
	secret     string
	hashTitles bool
	now        func() time.Time
}

// New creates a Normalizer. When secret is non-empty, PII values are hashed
// with HMAC-SHA256 so they cannot be reversed if the store leaks without the
// key; otherwise a plain SHA-256 digest is used. hashTitles controls whether
// window titles are hashed or merely truncated.
func New(secret string, hashTitles bool) *Normalizer {
	return &Normalizer{secret: secret, hashTitles: hashTitles, now: time.Now}
}

// Normalize converts a raw event into its canonical stored form.
func (n *Normalizer) Normalize(raw RawEvent) storage.Event {
	ev := storage.Event{
		UserID:    raw.UserID,
		EventID:   raw.EventID,
		Timestamp: n.parseTimestamp(raw.Timestamp),
		Type:      raw.Type,
		Meta:      make(map[string]string, len(raw.Meta)),
	}
	for k, v := range raw.Meta {
		ev.Meta[k] = v
	}

	for _, key := range piiKeys {
		v, ok := ev.Meta[key]
		if !ok || v == "" {
			continue
		}
		ev.Meta[key+"_hash"] = n.hash(v)
		delete(ev.Meta, key)
	}

	if title, ok := ev.Meta["window_title"]; ok {
		if len(title) > maxTitleLen {
			title = title[:maxTitleLen]
		}
		if n.hashTitles && title != "" {
			ev.Meta["window_title_hash"] = n.hash(title)
			delete(ev.Meta, "window_title")
		} else {
			ev.Meta["window_title"] = title
		}
	}

	for k, v := range ev.Meta {
		if len(v) > maxMetaLen {
			ev.Meta[k] = v[:maxMetaLen]
		}
	}

	return ev
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds or a
// trailing Z. Anything unparsable falls back to the current time.
func (n *Normalizer) parseTimestamp(s string) time.Time {
	if s == "" {
		return n.now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return n.now().UTC()
}

func (n *Normalizer) hash(value string) string {
	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write([]byte(value))
		return hex.EncodeToString(mac.Sum(nil))
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
