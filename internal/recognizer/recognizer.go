// internal/recognizer/recognizer.go
//
// Package recognizer turns accumulated handwriting ink into text. The
// service is a black box behind the Recognizer interface: a failed call is
// recoverable and must leave the caller's state untouched so the player can
// redraw and resubmit.
package recognizer

import (
	"context"
	"errors"

	"github.com/linyc/inkgold/internal/ink"
)

// ErrNoCandidates is returned when the service answered but produced no
// usable text for the given ink.
var ErrNoCandidates = errors.New("recognizer: no candidates")

// Recognizer converts a timed stroke series into the best-guess text.
type Recognizer interface {
	Recognize(ctx context.Context, strokes ink.Ink) (string, error)
}

// Func adapts an ordinary function to the Recognizer interface.
type Func func(ctx context.Context, strokes ink.Ink) (string, error)

func (f Func) Recognize(ctx context.Context, strokes ink.Ink) (string, error) {
	return f(ctx, strokes)
}
