package platform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newConsent(t *testing.T, input string) (*Consent, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	return &Consent{
		In:        strings.NewReader(input),
		Out:       out,
		GrantFile: filepath.Join(dir, "cfg", "microphone_grant"),
		Dir:       filepath.Join(dir, "tmp"),
	}, out
}

func TestSelect(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, tt := range []struct {
		mode    string
		want    string
		wantErr bool
	}{
		{"", ModePassive, false},
		{"passive", ModePassive, false},
		{"consent", ModeConsent, false},
		{"kiosk", "", true},
	} {
		t.Run(tt.mode, func(t *testing.T) {
			pio, err := Select(tt.mode)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if pio.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", pio.Name(), tt.want)
			}
		})
	}
}

func TestPassiveAlwaysGrants(t *testing.T) {
	p := &Passive{Dir: filepath.Join(t.TempDir(), "hark")}
	if err := p.AcquireMicrophone(context.Background()); err != nil {
		t.Fatalf("AcquireMicrophone: %v", err)
	}
	dir, err := p.TempDir()
	if err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("TempDir %s not created: %v", dir, err)
	}
}

func TestConsentYesPersists(t *testing.T) {
	c, out := newConsent(t, "y\n")
	if err := c.AcquireMicrophone(context.Background()); err != nil {
		t.Fatalf("AcquireMicrophone: %v", err)
	}
	if !strings.Contains(out.String(), "[y/N]") {
		t.Errorf("prompt not shown, got %q", out.String())
	}

	// A second acquire must not prompt: the reader is now exhausted.
	out.Reset()
	c.In = strings.NewReader("")
	if err := c.AcquireMicrophone(context.Background()); err != nil {
		t.Fatalf("second AcquireMicrophone: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("prompted again: %q", out.String())
	}
}

func TestConsentDenied(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "maybe\n", ""} {
		t.Run(strings.TrimSpace(answer), func(t *testing.T) {
			c, _ := newConsent(t, answer)
			err := c.AcquireMicrophone(context.Background())
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("err = %v, want ErrPermissionDenied", err)
			}
			if _, err := os.Stat(c.GrantFile); !os.IsNotExist(err) {
				t.Error("grant file written after denial")
			}
		})
	}
}

func TestConsentLeavesRestOfInput(t *testing.T) {
	c, _ := newConsent(t, "y\nPRESS\nRELEASE\nQUIT\n")
	in := c.In
	if err := c.AcquireMicrophone(context.Background()); err != nil {
		t.Fatalf("AcquireMicrophone: %v", err)
	}
	rest, err := io.ReadAll(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "PRESS\nRELEASE\nQUIT\n" {
		t.Errorf("input after answer = %q, want the remaining lines", rest)
	}
}

func TestConsentCancelledFile(t *testing.T) {
	c, _ := newConsent(t, "")
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	c.In = r

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.AcquireMicrophone(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	// The interrupted read must not swallow input written afterwards.
	w.Write([]byte("PRESS\n"))
	buf := make([]byte, 6)
	if _, err := io.ReadFull(r, buf); err != nil || string(buf) != "PRESS\n" {
		t.Errorf("read after cancel = %q, %v", buf, err)
	}
}

func TestConsentYesWithoutNewline(t *testing.T) {
	c, _ := newConsent(t, "YES")
	if err := c.AcquireMicrophone(context.Background()); err != nil {
		t.Fatalf("AcquireMicrophone: %v", err)
	}
}

func TestConsentCancelled(t *testing.T) {
	c, _ := newConsent(t, "")
	pr, pw := io.Pipe()
	defer pw.Close()
	c.In = pr

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.AcquireMicrophone(ctx)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestConsentRevoke(t *testing.T) {
	c, _ := newConsent(t, "yes\n")
	if err := c.AcquireMicrophone(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Revoke(); err != nil {
		t.Fatal(err)
	}
	if err := c.Revoke(); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
	c.In = strings.NewReader("n\n")
	if err := c.AcquireMicrophone(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("after revoke err = %v, want ErrPermissionDenied", err)
	}
}
