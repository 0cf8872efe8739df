package doctor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"hark/audio"
	"hark/config"
	"hark/platform"
	"hark/transcriber"
)

func target(t *testing.T, url string) (Target, string) {
	t.Helper()
	dir := t.TempDir()
	return Target{
		Config: &config.Config{
			APIKey:     "sk-test",
			Provider:   "stub",
			Model:      "whisper-test",
			Permission: platform.ModePassive,
		},
		Audio:     audio.NewFakeContext(make([]byte, 8000*2), false),
		IO:        &platform.Passive{Dir: dir},
		Client:    transcriber.New(transcriber.Provider{Name: "stub", URL: url, Model: "whisper-test"}),
		RoundTrip: true,
		Hotkey:    func() (string, error) { return "ok", nil },
		Clipboard: func() error { return nil },
	}, dir
}

func TestRunAllPass(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			io.WriteString(w, `{"text":"testing one two"}`)
		}
	}))
	defer srv.Close()

	tg, dir := target(t, srv.URL)
	var out bytes.Buffer
	if code := Run(context.Background(), &out, tg); code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out.String())
	}

	got := out.String()
	for _, want := range []string{"PASS", "0.5s captured", `"testing one two"`, "All checks passed!"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "FAIL") {
		t.Errorf("unexpected FAIL\n%s", got)
	}
	if posts.Load() != 1 {
		t.Errorf("posts = %d, want 1", posts.Load())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d files left in artifact dir", len(entries))
	}
}

func TestRunReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tg, _ := target(t, srv.URL)
	tg.Config.APIKey = ""
	tg.Config.Device = "Nonexistent Mic"
	tg.Clipboard = func() error { return errors.New("xclip missing") }

	var out bytes.Buffer
	if code := Run(context.Background(), &out, tg); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	got := out.String()
	for _, want := range []string{
		"HARK_API_KEY is not set",
		`configured device "Nonexistent Mic": capture device not found`,
		"transcription request failed",
		"SKIP no credential",
		"xclip missing",
		"check(s) failed.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
}

func TestRunCaptureFailure(t *testing.T) {
	tg, _ := target(t, "http://127.0.0.1:0")
	fc := audio.NewFakeContext(nil, false)
	fc.CaptureErr = errors.New("device busy")
	tg.Audio = fc
	tg.RoundTrip = false
	tg.Hotkey = nil

	var out bytes.Buffer
	Run(context.Background(), &out, tg)

	got := out.String()
	for _, want := range []string{"device busy", "SKIP disabled", "SKIP not available"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
}
