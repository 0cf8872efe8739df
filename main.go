package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hark/artifact"
	"hark/audio"
	"hark/beep"
	"hark/clipboard"
	"hark/config"
	"hark/doctor"
	"hark/hotkey"
	"hark/log"
	"hark/platform"
	"hark/recorder"
	"hark/session"
	"hark/shutdown"
	"hark/transcriber"
)

var version = "dev"

// staleArtifactAge is how old a leftover artifact must be before startup
// removes it.
const staleArtifactAge = time.Hour

type options struct {
	logPath     string
	envFile     string
	test        bool
	version     bool
	devices     bool
	setup       bool
	doctor      bool
	forget      bool
	noBeep      bool
	longPress   time.Duration
	overrides   config.Overrides
	languageSet bool
	language    string
}

func parseFlags(args []string) (*options, []string, error) {
	fs := flag.NewFlagSet("hark", flag.ContinueOnError)
	o := &options{}
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file to read before the environment")
	fs.BoolVar(&o.test, "test", false, "Test mode (headless, stdin-driven): hark -test <wav-file>")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.BoolVar(&o.devices, "devices", false, "List capture devices and exit")
	fs.BoolVar(&o.setup, "setup", false, "Select microphone device (otherwise uses system default)")
	fs.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics and exit")
	fs.BoolVar(&o.forget, "forget-permission", false, "Forget a remembered microphone consent and exit")
	fs.BoolVar(&o.noBeep, "nobeep", false, "Disable start/stop sounds")
	fs.DurationVar(&o.longPress, "longpress", 350*time.Millisecond, "Hold threshold for push-to-talk vs tap-to-toggle on the hotkey")
	fs.StringVar(&o.overrides.Device, "device", "", "Use named microphone device")
	fs.StringVar(&o.overrides.Provider, "provider", "", "Transcription provider: openai or groq")
	fs.StringVar(&o.overrides.Endpoint, "endpoint", "", "Transcription endpoint URL override")
	fs.StringVar(&o.overrides.Model, "model", "", "Transcription model override")
	fs.StringVar(&o.language, "lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	fs.DurationVar(&o.overrides.Timeout, "timeout", 0, "Per-request timeout (default 30s)")
	fs.StringVar(&o.overrides.Permission, "permission", "", "Microphone permission model: passive or consent")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "lang" {
			o.languageSet = true
		}
	})
	if o.languageSet {
		o.overrides.Language = &o.language
	}
	o.overrides.EnvFile = o.envFile
	o.overrides.NoBeep = o.noBeep
	return o, fs.Args(), nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), log.CrashFile)
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() int {
	opts, args, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Printf("hark %s\n", version)
		return 0
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(opts.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else {
		initCrashLog()
	}

	cfg, err := config.Load(opts.overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pio, err := platform.Select(cfg.Permission)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.forget {
		return forgetPermission(pio)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	var actx audio.Context
	if opts.test {
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: hark -test <wav-file>")
			return 1
		}
		actx, err = audio.NewFakeContextFromWAV(args[0], true)
	} else {
		actx, err = audio.NewContext()
	}
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	if opts.devices {
		if err := audio.PrintDevices(os.Stdout, actx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	client := transcriber.New(cfg.TranscriptionProvider(),
		transcriber.WithLanguage(cfg.Language),
		transcriber.WithTimeout(cfg.Timeout),
	)

	if opts.doctor {
		return doctor.Run(ctx, os.Stdout, doctor.Target{
			Config:     cfg,
			Audio:      actx,
			IO:         pio,
			Client:     client,
			CaptureFor: 2 * time.Second,
			RoundTrip:  true,
			Hotkey:     hotkey.Diagnose,
			Clipboard:  clipboard.Check,
		})
	}

	device, err := pickDevice(actx, cfg, opts.setup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if !cfg.Beep || opts.test {
		beep.Disable()
	}

	tempDir, err := pio.TempDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: artifact directory: %v\n", err)
		return 1
	}
	if n, err := artifact.Sweep(tempDir, staleArtifactAge); err != nil {
		log.Warnf("artifact sweep failed: %v", err)
	} else if n > 0 {
		log.Info(fmt.Sprintf("removed %d stale artifact(s)", n))
	}

	rec := recorder.New(actx, device, tempDir)
	if err := rec.Open(); err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintln(os.Stderr, session.Message(err))
		return 1
	}
	defer rec.Close()

	log.SessionStart(cfg.Provider, cfg.Model, pio.Name())
	if !cfg.HasCredential() {
		log.Warnf("no credential configured")
	}

	var sink func(session.Snapshot)
	ctrl := session.New(session.Config{
		IO:          pio,
		Recorder:    rec,
		Transcriber: client,
		Credential:  cfg.APIKey,
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		OnChange: func(s session.Snapshot) {
			cue(s.State)
			if sink != nil {
				sink(s)
			}
		},
	})
	defer func() { log.SessionEnd(ctrl.Count()) }()

	// Consent prompts on the terminal, so it must run before the TUI owns it.
	if err := ctrl.Acquire(ctx); err != nil {
		fmt.Fprintln(os.Stderr, session.Message(err))
	}

	if opts.test {
		out := &scriptOutput{w: os.Stdout}
		sink = out.snapshot
		if err := runScript(ctx, ctrl, os.Stdin, out); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	return runTUI(ctx, cancel, cfg, rec, ctrl, &sink, opts.longPress)
}

func runTUI(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, rec *recorder.Recorder, ctrl *session.Controller, sink *func(session.Snapshot), longPress time.Duration) int {
	handle := func(ev session.Event) {
		if err := ctrl.Handle(ctx, ev); err != nil {
			log.Warnf("%s: %v", ev, err)
		}
	}

	hk := hotkey.New()
	registered := hk.Register() == nil
	if !registered {
		log.Warnf("hotkey unavailable, use space")
	} else {
		defer hk.Unregister()
	}

	m := newTUIModel(handle, clipboard.Copy)
	m.modeLine = modeLineText(cfg)
	m.deviceLine = "mic: " + rec.DeviceName()
	m.hotkeyLine = hotkeyHelp(registered)
	m.snap = ctrl.Snapshot()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	*sink = func(s session.Snapshot) { program.Send(SnapshotMsg{Snapshot: s}) }
	rec.OnLevel(func(level float64) { program.Send(AudioLevelMsg{Level: level}) })

	if registered {
		hy := hotkey.NewHybrid(hk, longPress)
		defer hy.Close()
		go pumpHotkey(ctx, hy, handle)
	}

	_, err := program.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Errorf("TUI error: %v", err)
		return 1
	}
	return 0
}

// pumpHotkey forwards hotkey actions. Releases run in the background so a
// press during transcription reaches the controller and is rejected there.
func pumpHotkey(ctx context.Context, hy *hotkey.Hybrid, handle func(session.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-hy.Actions():
			if a == hotkey.ActionPress {
				handle(session.Press)
			} else {
				go handle(session.Release)
			}
		}
	}
}

func cue(s session.State) {
	switch s {
	case session.Recording:
		beep.Start()
	case session.Transcribing:
		beep.Stop()
	case session.Failed:
		beep.Error()
	}
}

func pickDevice(actx audio.Context, cfg *config.Config, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		d, err := audio.SelectDevice(actx)
		if errors.Is(err, audio.ErrSelectionAborted) {
			return nil, err
		}
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
			return nil, nil
		}
		return d, nil
	}
	if cfg.Device == "" {
		return nil, nil
	}
	d, err := audio.FindDevice(actx, cfg.Device)
	if errors.Is(err, audio.ErrDeviceNotFound) {
		log.Warnf("device %q not found, using default", cfg.Device)
		fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", cfg.Device)
		return nil, nil
	}
	return d, err
}

func forgetPermission(pio platform.IO) int {
	c, ok := pio.(*platform.Consent)
	if !ok {
		fmt.Println("Nothing to forget: permission mode is " + pio.Name())
		return 0
	}
	if err := c.Revoke(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Microphone consent forgotten")
	return 0
}

func modeLineText(cfg *config.Config) string {
	lang := cfg.Language
	if lang == "" {
		lang = "auto"
	}
	return fmt.Sprintf("%s · %s · %s", cfg.Provider, cfg.Model, lang)
}
