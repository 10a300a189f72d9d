// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard command available")

const copyTimeout = 4 * time.Second

var (
	unsupported = func() bool { return clipboard.Unsupported }
	writeAll    = clipboard.WriteAll
)

// CopyText writes value to the clipboard. The helper command behind the
// clipboard can hang without a display server, so the copy is abandoned
// after a few seconds.
func CopyText(ctx context.Context, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if unsupported() {
		return ErrUnavailable
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- writeAll(value)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		return nil
	case <-copyCtx.Done():
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return copyCtx.Err()
	}
}
