package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hark/artifact"
	"hark/encoder"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	provider Provider
	lang     string
	timeout  time.Duration
	retries  int
	http     *tracedHTTP
}

type Option func(*Client)

// WithLanguage sets the language hint. Empty lets the API auto-detect.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a transient network failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

func New(p Provider, opts ...Option) *Client {
	c := &Client{
		provider: p,
		timeout:  DefaultTimeout,
		retries:  1,
		http:     newTracedHTTP(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() Provider { return c.provider }

func (c *Client) Language() string { return c.lang }

// Warm pre-opens a connection to the endpoint so the TLS handshake
// overlaps with recording. Failures are ignored.
func (c *Client) Warm() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.http.head(ctx, c.provider.URL)
}

// Reachable checks that the endpoint answers within the request timeout.
func (c *Client) Reachable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.http.head(ctx, c.provider.URL); err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

// Transcribe uploads a as multipart/form-data and returns the transcript.
// The artifact is read once; a retry re-sends the same bytes.
func (c *Client) Transcribe(ctx context.Context, a artifact.Artifact, credential string) (*Result, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrConfigurationMissing
	}

	audio, err := a.ReadAll()
	if err != nil {
		return nil, err
	}

	body, contentType, err := c.buildBody(audio, filepath.Base(a.Path))
	if err != nil {
		return nil, err
	}

	var resp *reply
	attempts := 0
	for {
		attempts++
		resp, err = c.post(ctx, body, contentType, credential)
		if err == nil {
			break
		}
		nerr := &NetworkError{Err: err}
		if attempts > c.retries || ctx.Err() != nil || !isTransient(err) {
			return nil, nerr
		}
	}

	if resp.status != http.StatusOK {
		return nil, &APIError{StatusCode: resp.status, Body: string(resp.body)}
	}

	text, ok := parseTranscript(resp.body)
	if !ok {
		return nil, &APIError{StatusCode: resp.status, Body: string(resp.body)}
	}

	remaining := firstNonEmpty(resp.header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      text,
		Metrics:   resp.metrics,
		RateLimit: remaining + "/" + limit,
		AudioKB:   float64(len(audio)) / 1024,
		Attempts:  attempts,
	}, nil
}

func (c *Client) buildBody(audio []byte, filename string) ([]byte, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if filepath.Ext(filename) != encoder.Extension {
		filename = "audio" + encoder.Extension
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", encoder.MIMEType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	writer.WriteField("model", c.provider.Model)
	writer.WriteField("response_format", "json")
	if c.lang != "" {
		writer.WriteField("language", c.lang)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType, credential string) (*reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	return c.http.do(req)
}

// parseTranscript accepts {"text": ...} or a plain-text body. A JSON
// document without a text field is not a transcript.
func parseTranscript(body []byte) (string, bool) {
	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Text != nil {
		return strings.TrimSpace(*payload.Text), true
	}
	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "", false
	}
	return string(trimmed), true
}

// isTransient reports failures worth one more attempt: timeouts and
// connections dropped or refused before a response arrived.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
