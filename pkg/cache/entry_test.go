package cache

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newResponse(status int, body string, header map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range header {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestEntry_Expiry(t *testing.T) {
	e := &Entry{ExpiresAt: testNow.Add(time.Minute)}

	if e.Expired(testNow) {
		t.Error("entry expired a minute early")
	}
	if got := e.TTL(testNow); got != time.Minute {
		t.Errorf("TTL = %v, want 1m", got)
	}
	if !e.Expired(testNow.Add(time.Minute)) {
		t.Error("entry should expire at ExpiresAt")
	}
	if got := e.TTL(testNow.Add(time.Hour)); got != 0 {
		t.Errorf("TTL after expiry = %v, want 0", got)
	}
}

func TestEntry_Condition(t *testing.T) {
	lastMod := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		entry         Entry
		revalidatable bool
		ifNoneMatch   string
		ifModSince    string
	}{
		{"etag", Entry{ETag: `"v1"`}, true, `"v1"`, ""},
		{"etag wins over date", Entry{ETag: `"v1"`, LastModified: lastMod}, true, `"v1"`, ""},
		{"date only", Entry{LastModified: lastMod}, true, "", "Tue, 30 Apr 2024 08:00:00 GMT"},
		{"no validator", Entry{}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Revalidatable(); got != tt.revalidatable {
				t.Errorf("Revalidatable() = %v, want %v", got, tt.revalidatable)
			}
			h := http.Header{}
			tt.entry.Condition(h)
			if got := h.Get("If-None-Match"); got != tt.ifNoneMatch {
				t.Errorf("If-None-Match = %q, want %q", got, tt.ifNoneMatch)
			}
			if got := h.Get("If-Modified-Since"); got != tt.ifModSince {
				t.Errorf("If-Modified-Since = %q, want %q", got, tt.ifModSince)
			}
		})
	}

	var nilEntry *Entry
	if nilEntry.Revalidatable() {
		t.Error("nil entry reported revalidatable")
	}
}

func TestEntry_Replay(t *testing.T) {
	e := &Entry{Body: []byte(`{"data":[]}`), ContentType: "application/json", ETag: `"v1"`}
	req, _ := http.NewRequest(http.MethodGet, "http://api.test/subscriptions", nil)

	resp := e.Replay(req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" || resp.Header.Get("ETag") != `"v1"` {
		t.Errorf("headers = %v", resp.Header)
	}
	if resp.Request != req {
		t.Error("Request not set")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"data":[]}` {
		t.Errorf("body = %q", body)
	}
}

func TestFromResponse(t *testing.T) {
	resp := newResponse(http.StatusOK, `{"data":[1]}`, map[string]string{
		"ETag":          `"abc"`,
		"Last-Modified": "Tue, 30 Apr 2024 08:00:00 GMT",
		"Content-Type":  "application/json",
		"Cache-Control": "private, max-age=60",
	})

	entry, storable, err := FromResponse(resp, testNow)
	if err != nil {
		t.Fatalf("FromResponse() error: %v", err)
	}
	if !storable {
		t.Fatal("storable = false, want true")
	}
	if entry.ETag != `"abc"` || entry.ContentType != "application/json" {
		t.Errorf("validators = %q %q", entry.ETag, entry.ContentType)
	}
	if !entry.LastModified.Equal(time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("LastModified = %v", entry.LastModified)
	}
	if !entry.ExpiresAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want now+60s", entry.ExpiresAt)
	}

	// The caller can still read the body.
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"data":[1]}` {
		t.Errorf("restored body = %q", body)
	}
	if string(entry.Body) != `{"data":[1]}` {
		t.Errorf("entry body = %q", entry.Body)
	}
}

func TestRetention(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]string
		want     time.Time
		storable bool
	}{
		{"default", nil, testNow.Add(DefaultRetention), true},
		{"max-age", map[string]string{"Cache-Control": "max-age=300"}, testNow.Add(5 * time.Minute), true},
		{"max-age zero falls back", map[string]string{"Cache-Control": "max-age=0"}, testNow.Add(DefaultRetention), true},
		{"no-cache still stored", map[string]string{"Cache-Control": "no-cache"}, testNow.Add(DefaultRetention), true},
		{"no-store", map[string]string{"Cache-Control": "no-store, max-age=300"}, testNow, false},
		{"expires", map[string]string{"Expires": "Wed, 01 May 2024 13:00:00 GMT"}, testNow.Add(time.Hour), true},
		{"past expires falls back", map[string]string{"Expires": "Wed, 01 May 2024 11:00:00 GMT"}, testNow.Add(DefaultRetention), true},
		{"bad expires falls back", map[string]string{"Expires": "soon"}, testNow.Add(DefaultRetention), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			got, storable := retention(h, testNow)
			if !got.Equal(tt.want) {
				t.Errorf("retention() = %v, want %v", got, tt.want)
			}
			if storable != tt.storable {
				t.Errorf("storable = %v, want %v", storable, tt.storable)
			}
		})
	}
}
