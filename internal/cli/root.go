package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxtalk/internal/audio"
	"github.com/fmueller/voxtalk/internal/capture"
	"github.com/fmueller/voxtalk/internal/clipboard"
	"github.com/fmueller/voxtalk/internal/config"
	"github.com/fmueller/voxtalk/internal/desktop"
	"github.com/fmueller/voxtalk/internal/device"
	"github.com/fmueller/voxtalk/internal/logging"
	"github.com/fmueller/voxtalk/internal/platform"
	"github.com/fmueller/voxtalk/internal/playback"
	"github.com/fmueller/voxtalk/internal/synth"
	"github.com/fmueller/voxtalk/internal/transcribe"
	"github.com/fmueller/voxtalk/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// audioDevice opens both microphone and speaker streams.
type audioDevice interface {
	capture.Opener
	playback.Opener
}

type appState struct {
	configPath     string
	cfg            config.Config
	verbose        bool
	jsonLogs       bool
	noProgress     bool
	language       string
	backend        string
	input          string
	inputFormat    string
	copyResult     bool
	copyEmpty      bool
	silenceGate    bool
	silenceDBFS    float64
	duration       time.Duration
	immediate      bool
	translate      bool
	targetLanguage string
	notify         bool

	logger *zap.Logger
	now    func() time.Time
	out    io.Writer
	in     io.Reader

	deviceFn     func() (audioDevice, error)
	waitFn       func(in io.Reader, out io.Writer, message string) error
	recordFn     func(ctx context.Context, opts recordOptions) (audio.Buffer, error)
	transcribeFn func(ctx context.Context, req transcribe.Request) (string, error)
	translateFn  func(ctx context.Context, text, targetLanguage string) (string, error)
	synthesizeFn func(ctx context.Context, text string, voice synth.VoiceConfig, output string) (synth.Result, error)
	playFn       func(ctx context.Context, path string) (playback.Result, error)
	copyFn       func(ctx context.Context, value string) error
	notifyFn     func(message string)
}

func newAppState() *appState {
	cfg := config.Default()
	app := &appState{
		cfg:            cfg,
		language:       cfg.Language,
		backend:        cfg.Backend,
		copyResult:     true,
		silenceGate:    cfg.Capture.SilenceGate,
		silenceDBFS:    cfg.Capture.SilenceThresholdDBFS,
		targetLanguage: cfg.Translate.TargetLanguage,
		now:            time.Now,
		out:            os.Stdout,
		in:             os.Stdin,
	}
	app.deviceFn = app.openDevice
	app.waitFn = waitForEnter
	app.recordFn = app.recordAudio
	app.transcribeFn = app.transcribeAudio
	app.translateFn = app.translateText
	app.synthesizeFn = app.synthesizeSpeech
	app.playFn = app.playAudio
	app.copyFn = clipboard.CopyText
	app.notifyFn = app.desktopNotify
	return app
}

func NewRootCmd() *cobra.Command {
	app := newAppState()

	cmd := &cobra.Command{
		Use:           "voxtalk",
		Short:         "Capture, transcribe, translate and speak audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDefault(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file path (default is the per-user config.yaml)")
	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	cmd.PersistentFlags().StringVar(&app.language, "language", app.language, "Language code (en-US|de-DE|...) for transcription")
	cmd.PersistentFlags().StringVar(&app.backend, "backend", app.backend, backendFlagUsage(runtime.GOOS))
	cmd.PersistentFlags().BoolVar(&app.notify, "notify", app.notify, "Show a desktop notification when a command finishes")

	bindRecordingFlags(cmd, app)
	bindCopyAndSilenceFlags(cmd, app)
	bindTranslateFlags(cmd, app)
	cmd.Flags().BoolVar(&app.copyResult, "copy", app.copyResult, "Copy the result to the clipboard")
	cmd.Flags().DurationVar(&app.duration, "duration", 0, "Record duration, e.g. 10s; 0 means interactive start/stop")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newTranslateCmd(app))
	cmd.AddCommand(newSpeakCmd(app))
	cmd.AddCommand(newPlayCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindRecordingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.input, "input", app.input, "Input device (run \"voxtalk devices\" to list); e.g. node-ID (pipewire), hw:1,0 (alsa), :1 (ffmpeg)")
	cmd.Flags().StringVar(&app.inputFormat, "input-format", app.inputFormat, "Device driver for the ffmpeg backend (pulse|alsa)")
}

func bindCopyAndSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.copyEmpty, "copy-empty", app.copyEmpty, "Copy blank transcripts to clipboard")
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent audio and skip transcription")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

func bindTranslateFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.translate, "translate", app.translate, "Translate the transcript")
	bindTargetLanguageFlag(cmd, app)
}

func bindTargetLanguageFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.targetLanguage, "target-language", app.targetLanguage, "Translation target language code")
}

// prepare loads the config file, lets explicitly set flags win over it and
// builds the logger.
func (a *appState) prepare(cmd *cobra.Command) error {
	cfg, path, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	a.applyConfig(cfg, func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	})

	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	if path != "" {
		a.log().Debug("config loaded", zap.String("path", path))
	}
	return nil
}

func (a *appState) applyConfig(cfg config.Config, changed func(name string) bool) {
	a.cfg = cfg
	if !changed("json") {
		a.jsonLogs = strings.EqualFold(cfg.Logging.Format, "json")
	}
	if !changed("language") {
		a.language = cfg.Language
	}
	if !changed("backend") {
		a.backend = cfg.Backend
	}
	if !changed("notify") {
		a.notify = cfg.Notify
	}
	if !changed("input") {
		a.input = cfg.Capture.Device
	}
	if !changed("input-format") {
		a.inputFormat = cfg.Capture.Driver
	}
	if !changed("silence-gate") {
		a.silenceGate = cfg.Capture.SilenceGate
	}
	if !changed("silence-threshold-dbfs") {
		a.silenceDBFS = cfg.Capture.SilenceThresholdDBFS
	}
	if !changed("target-language") {
		a.targetLanguage = cfg.Translate.TargetLanguage
	}
	a.language = sanitizeLanguage(a.language)
}

func (a *appState) runDefault(ctx context.Context) error {
	recordFn := a.recordFn
	if recordFn == nil {
		recordFn = a.recordAudio
	}

	buf, err := recordFn(ctx, recordOptions{duration: a.duration, input: a.input, format: a.inputFormat})
	if err != nil {
		return err
	}

	transcript, err := a.engine().Transcribe(ctx, transcribe.Request{
		Source:       transcribe.BufferSource(buf),
		LanguageCode: a.language,
	})
	if err != nil {
		return err
	}

	return a.deliverTranscript(ctx, a.outWriter(), transcript, a.copyResult)
}

// deliverTranscript prints transcript, translates it when requested and
// copies the final text. Clipboard failures never fail the command.
func (a *appState) deliverTranscript(ctx context.Context, out io.Writer, transcript string, copyResult bool) error {
	fmt.Fprintln(out, transcript)

	result := transcript
	blank := transcribe.IsBlank(transcript)
	if blank {
		a.log().Warn(noSpeechHint())
	} else if a.translate {
		translated, err := a.translateWith(ctx, transcript, a.targetLanguage)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, translated)
		result = translated
	}

	a.notifyDone("Transcript ready")

	if !copyResult || (blank && !a.copyEmpty) {
		return nil
	}

	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	if err := copyFn(ctx, result); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard unavailable; transcript left on stdout")
			return nil
		}
		a.log().Warn("failed to copy transcript to clipboard; transcript left on stdout", zap.Error(err))
		return nil
	}

	a.log().Info("transcript copied to clipboard")
	return nil
}

// engine returns the transcription engine behind the silence gate when the
// gate is enabled.
func (a *appState) engine() transcribe.Engine {
	transcribeFn := a.transcribeFn
	if transcribeFn == nil {
		transcribeFn = a.transcribeAudio
	}

	engine := transcribe.EngineFunc(transcribeFn)
	if !a.silenceGate {
		return engine
	}
	return transcribe.Gate{Engine: engine, ThresholdDBFS: a.silenceDBFS, Logger: a.log()}
}

func (a *appState) device() (audioDevice, error) {
	if a.deviceFn == nil {
		return a.openDevice()
	}
	return a.deviceFn()
}

func (a *appState) recordingOutputPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		if err := os.MkdirAll(filepath.Dir(override), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return override, nil
	}

	recordingDir, err := platform.ResolveRecordingDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(recordingDir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory %s: %w", recordingDir, err)
	}

	return filepath.Join(recordingDir, fmt.Sprintf("recording-%s.wav", a.clock().Format("20060102-150405"))), nil
}

func (a *appState) notifyDone(message string) {
	if a.notifyFn != nil {
		a.notifyFn(message)
	}
}

func (a *appState) desktopNotify(message string) {
	desktop.Notifier{Enabled: a.notify, Logger: a.log()}.Notify(message)
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) inReader() io.Reader {
	if a.in == nil {
		return os.Stdin
	}
	return a.in
}

// backendFlagUsage lists the backends compiled in for goos.
func backendFlagUsage(goos string) string {
	names := append([]string{"auto"}, device.BackendNames(goos)...)
	return "Audio backend: " + strings.Join(names, "|")
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return config.Default().Language
	}
	return trimmed
}
