// Package transcriber uploads a recorded artifact to an OpenAI-compatible
// speech-to-text endpoint.
package transcriber

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text      string
	Metrics   *NetworkMetrics
	RateLimit string // "remaining/limit", "?" when the header is absent
	AudioKB   float64
	Attempts  int
}

// ErrConfigurationMissing is returned before any network I/O when no
// credential is configured.
var ErrConfigurationMissing = errors.New("transcription credential not configured")

// APIError is a non-200 reply. Body is the response body verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription API error %d: %s", e.StatusCode, e.Body)
}

// NetworkError wraps transport failures: DNS, refused or reset connections,
// timeouts, unreadable responses.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "transcription request failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Provider is a transcription endpoint preset.
type Provider struct {
	Name  string
	URL   string
	Model string
}

var providers = []Provider{
	{Name: "openai", URL: "https://api.openai.com/v1/audio/transcriptions", Model: "gpt-4o-transcribe"},
	{Name: "groq", URL: "https://api.groq.com/openai/v1/audio/transcriptions", Model: "whisper-large-v3-turbo"},
}

// LookupProvider returns the preset called name.
func LookupProvider(name string) (Provider, error) {
	for _, p := range providers {
		if p.Name == name {
			return p, nil
		}
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return Provider{}, fmt.Errorf("unknown provider %q (use %s)", name, strings.Join(names, " or "))
}
