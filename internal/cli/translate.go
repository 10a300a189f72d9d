package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fmueller/voxtalk/internal/clipboard"
	"github.com/fmueller/voxtalk/internal/fault"
	"github.com/fmueller/voxtalk/internal/translate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranslateCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text given as arguments or on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := app.textInput(args)
			if err != nil {
				return err
			}

			translated, err := app.translateWith(cmd.Context(), text, app.targetLanguage)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), translated)
			if copyToClipboard {
				copyFn := app.copyFn
				if copyFn == nil {
					copyFn = clipboard.CopyText
				}
				if err := copyFn(cmd.Context(), translated); err != nil {
					return err
				}
				app.log().Info("translation copied to clipboard")
			}
			return nil
		},
	}

	bindTargetLanguageFlag(cmd, app)
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy translation to clipboard")
	return cmd
}

// textInput joins args, or reads all of stdin when there are none.
func (a *appState) textInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(a.inReader())
	if err != nil {
		return "", fault.FileIO("read stdin", "", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fault.InvalidInput("no text given: pass it as arguments or on stdin")
	}
	return text, nil
}

func (a *appState) translateWith(ctx context.Context, text, targetLanguage string) (string, error) {
	translateFn := a.translateFn
	if translateFn == nil {
		translateFn = a.translateText
	}
	return translateFn(ctx, text, targetLanguage)
}

func (a *appState) translateText(ctx context.Context, text, targetLanguage string) (string, error) {
	client := translate.New(translate.Options{
		Endpoint: a.cfg.Translate.Endpoint,
		Timeout:  a.cfg.Translate.Timeout,
		Logger:   a.log(),
	})

	a.log().Info("translating...", zap.String("target_language", targetLanguage))
	stopSpinner := startSpinner(a.progressEnabled(), "Translating")
	started := time.Now()

	translated, err := client.Translate(ctx, text, targetLanguage)
	stopSpinner()
	if err != nil {
		a.log().Warn("translation failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	a.log().Info("translation finished", zap.Duration("elapsed", time.Since(started)))
	return translated, nil
}
