// Package decoder adapts QR/barcode decoders into a stream of decoded text.
package decoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound means the current frame held no code. Callers treat it as a no-op.
	ErrNotFound = errors.New("decoder: no code found in frame")
	// ErrFault means the device itself failed (camera gone, permission denied).
	ErrFault = errors.New("decoder: device fault")
)

// Result is one decoder callback: decoded text or an error.
type Result struct {
	Text string
	Err  error
}

// LineSource emits one Result per line read from r. Keyboard-wedge scanners
// and piped decoder processes both produce newline-terminated payloads.
// Blank lines are reported as ErrNotFound; a read error is reported as
// ErrFault. The channel is closed at EOF, after a fault or when ctx is done.
func LineSource(ctx context.Context, r io.Reader) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			res := Result{Text: strings.TrimRight(sc.Text(), "\r")}
			if strings.TrimSpace(res.Text) == "" {
				res = Result{Err: ErrNotFound}
			}
			if !send(ctx, out, res) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			send(ctx, out, Result{Err: fmt.Errorf("%w: %w", ErrFault, err)})
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- Result, res Result) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsFatal reports whether err must stop the scanning session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFault)
}
