package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"hark/session"
)

// scriptOutput prints controller transitions for the headless mode.
type scriptOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *scriptOutput) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, args...)
}

func (o *scriptOutput) snapshot(s session.Snapshot) {
	o.printf("status: %s\n", s.Status)
	if s.State == session.Done {
		o.printf("transcript: %s\n", s.Text)
	}
}

// runScript drives ctrl from line commands:
//
//	PRESS        start recording
//	RELEASE      stop and transcribe in the background
//	WAIT         block until the last RELEASE finished
//	SLEEP <ms>   pause
//	QUIT         wait for pending work and return
//
// End of input behaves like QUIT.
func runScript(ctx context.Context, ctrl *session.Controller, in io.Reader, out *scriptOutput) error {
	var pending sync.WaitGroup
	defer pending.Wait()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch strings.ToUpper(cmd) {
		case "":
		case "PRESS", "KEYDOWN":
			if err := ctrl.Handle(ctx, session.Press); err != nil {
				out.printf("error: %v\n", err)
			}
		case "RELEASE", "KEYUP":
			pending.Add(1)
			go func() {
				defer pending.Done()
				if err := ctrl.Handle(ctx, session.Release); err != nil {
					out.printf("error: %v\n", err)
				}
			}()
		case "WAIT":
			pending.Wait()
		case "SLEEP":
			ms, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				out.printf("error: bad SLEEP argument %q\n", arg)
				continue
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		case "QUIT":
			return nil
		default:
			out.printf("error: unknown command %q\n", cmd)
		}
	}
	return scanner.Err()
}
