package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetention applies when a response carries no freshness headers.
const DefaultRetention = 5 * time.Minute

// Entry is a stored response body with its validators.
type Entry struct {
	Body         []byte    `json:"body"`
	ContentType  string    `json:"contentType,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified,omitzero"`
	StoredAt     time.Time `json:"storedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is past its retention at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL is the remaining retention at now, 0 once expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	return max(e.ExpiresAt.Sub(now), 0)
}

// Revalidatable reports whether the entry carries a validator.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}

// Condition sets If-None-Match, or If-Modified-Since when only a date is known.
func (e *Entry) Condition(h http.Header) {
	switch {
	case e.ETag != "":
		h.Set("If-None-Match", e.ETag)
	case !e.LastModified.IsZero():
		h.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
	}
}

// Replay builds a 200 response carrying the stored body.
func (e *Entry) Replay(req *http.Request) *http.Response {
	h := http.Header{}
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	if e.ETag != "" {
		h.Set("ETag", e.ETag)
	}
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// FromResponse reads resp's body into an Entry and gives resp an equivalent
// body back. ok is false when the response forbids storage.
func FromResponse(resp *http.Response, now time.Time) (entry *Entry, ok bool, err error) {
	if resp == nil || resp.Body == nil {
		return nil, false, fmt.Errorf("response has no body")
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	expires, storable := retention(resp.Header, now)
	entry = &Entry{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
		StoredAt:    now,
		ExpiresAt:   expires,
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}
	return entry, storable, nil
}

// retention derives how long to keep a response from Cache-Control max-age,
// then Expires, then DefaultRetention. no-store means do not keep it.
// no-cache is ignored: every use is revalidated anyway.
func retention(h http.Header, now time.Time) (time.Time, bool) {
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		if directive == "no-store" {
			return now, false
		}
		if v, found := strings.CutPrefix(directive, "max-age="); found {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return now.Add(time.Duration(secs) * time.Second), true
			}
		}
	}

	if v := h.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil && t.After(now) {
			return t, true
		}
	}
	return now.Add(DefaultRetention), true
}
