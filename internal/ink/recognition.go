// internal/ink/recognition.go
package ink

import "math"

// TimedPoint is one recognition sample: unit-square coordinates plus the
// capture time in milliseconds. The timed series is retained only on the
// submitting side; it never crosses the wire to other peers.
type TimedPoint struct {
	X      float64
	Y      float64
	TimeMs int64
}

// Ink is the recognition-side accumulation of a player's handwriting: one
// parallel-array triple [xs, ys, ts] per stroke, with coordinates scaled to
// the recognizer's writing guide. This is the unit handed to the
// handwriting service on submit.
type Ink struct {
	strokes  [][3][]int64
	current  [3][]int64
	inStroke bool
}

// BeginStroke opens a new stroke. An open stroke is finished implicitly.
func (k *Ink) BeginStroke() {
	k.EndStroke()
	k.inStroke = true
	k.current = [3][]int64{}
}

// AddPoint appends one timed sample to the open stroke. Points outside a
// stroke are dropped.
func (k *Ink) AddPoint(p TimedPoint) {
	if !k.inStroke {
		return
	}
	k.current[0] = append(k.current[0], scale(p.X))
	k.current[1] = append(k.current[1], scale(p.Y))
	k.current[2] = append(k.current[2], p.TimeMs)
}

// EndStroke closes the open stroke. Empty strokes are discarded.
func (k *Ink) EndStroke() {
	if k.inStroke && len(k.current[0]) > 0 {
		k.strokes = append(k.strokes, k.current)
	}
	k.inStroke = false
	k.current = [3][]int64{}
}

// DropLast removes the most recent finished stroke. Used by the
// client-side undo alongside the matching Board.DropLast.
func (k *Ink) DropLast() {
	if len(k.strokes) > 0 {
		k.strokes = k.strokes[:len(k.strokes)-1]
	}
}

// Clear discards all accumulated ink.
func (k *Ink) Clear() {
	k.strokes = nil
	k.current = [3][]int64{}
	k.inStroke = false
}

// StrokeCount reports the number of finished strokes.
func (k *Ink) StrokeCount() int {
	return len(k.strokes)
}

// Clone returns an independent copy of the finished strokes, safe to hand
// to a recognizer while the original keeps accumulating.
func (k *Ink) Clone() Ink {
	return Ink{strokes: k.Strokes()}
}

// Strokes returns the finished strokes as [xs, ys, ts] triples, the exact
// shape the recognition request serializes.
func (k *Ink) Strokes() [][3][]int64 {
	out := make([][3][]int64, len(k.strokes))
	for i, s := range k.strokes {
		out[i] = [3][]int64{
			append([]int64(nil), s[0]...),
			append([]int64(nil), s[1]...),
			append([]int64(nil), s[2]...),
		}
	}
	return out
}

func scale(v float64) int64 {
	return int64(math.Round(v * GuideSize))
}
