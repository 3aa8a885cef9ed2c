// internal/ink/ink.go
package ink

// GuideSize is the side length of the virtual writing area handed to the
// recognizer. Coordinates are normalized to the unit square on the wire and
// scaled up to this guide only when building recognition ink.
const GuideSize = 1000

// NumSlots is the fixed number of player seats.
const NumSlots = 3

// Point is one ink sample on the unit square. IsNewPath marks a pen-down,
// starting a new stroke; every following point extends the current stroke.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	IsNewPath bool    `json:"isNewPath"`
}

// Board accumulates the visible stroke history for a single player. Points
// arrive one at a time in relay order and reconstruct the same polylines on
// every receiver.
type Board struct {
	strokes [][]Point
}

// Add appends one point. A point with IsNewPath set opens a new stroke; a
// continuation point before any pen-down is dropped, since there is no
// stroke to extend.
func (b *Board) Add(p Point) {
	if p.IsNewPath {
		b.strokes = append(b.strokes, []Point{p})
		return
	}
	if len(b.strokes) == 0 {
		return
	}
	last := len(b.strokes) - 1
	b.strokes[last] = append(b.strokes[last], p)
}

// Clear discards all accumulated strokes.
func (b *Board) Clear() {
	b.strokes = nil
}

// DropLast removes the most recent stroke, if any.
func (b *Board) DropLast() {
	if len(b.strokes) > 0 {
		b.strokes = b.strokes[:len(b.strokes)-1]
	}
}

// StrokeCount reports the number of accumulated strokes.
func (b *Board) StrokeCount() int {
	return len(b.strokes)
}

// Strokes returns a deep copy of the stroke history, oldest first. The
// copy is safe to replay point-by-point (undo is implemented as clear plus
// replay of everything but the last stroke).
func (b *Board) Strokes() [][]Point {
	out := make([][]Point, len(b.strokes))
	for i, s := range b.strokes {
		out[i] = append([]Point(nil), s...)
	}
	return out
}

// Points flattens the stroke history back into relay order.
func (b *Board) Points() []Point {
	var out []Point
	for _, s := range b.strokes {
		out = append(out, s...)
	}
	return out
}

// Easel holds one board per player slot. It is the host-side mirror of
// everything relayed through the draw protocol.
type Easel struct {
	boards [NumSlots]Board
}

// Add mirrors a relayed point onto the given slot's board. Out-of-range
// slots are ignored; validation happens before relay, this is a backstop.
func (e *Easel) Add(slot int, p Point) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	e.boards[slot].Add(p)
}

// Clear empties a single slot's board, leaving the others untouched.
func (e *Easel) Clear(slot int) {
	if slot < 0 || slot >= NumSlots {
		return
	}
	e.boards[slot].Clear()
}

// ClearAll empties every board. Called when a new question is dealt.
func (e *Easel) ClearAll() {
	for i := range e.boards {
		e.boards[i].Clear()
	}
}

// Board returns the board for a slot, or nil if the slot is out of range.
func (e *Easel) Board(slot int) *Board {
	if slot < 0 || slot >= NumSlots {
		return nil
	}
	return &e.boards[slot]
}
