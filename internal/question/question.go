// internal/question/question.go
package question

// Question is one prompt and its single accepted answer. Judging is
// byte-exact against Answer, so the bank stores the precise glyph expected
// from the recognizer.
type Question struct {
	Prompt string `json:"prompt"`
	Answer string `json:"correctAnswer"`
}

// DefaultBank is the built-in single-character question sequence.
var DefaultBank = []Question{
	{Prompt: "太陽的「日」", Answer: "日"},
	{Prompt: "月亮的「月」", Answer: "月"},
	{Prompt: "山峰的「山」", Answer: "山"},
	{Prompt: "河水的「水」", Answer: "水"},
	{Prompt: "火焰的「火」", Answer: "火"},
	{Prompt: "樹木的「木」", Answer: "木"},
	{Prompt: "黃金的「金」", Answer: "金"},
	{Prompt: "土地的「土」", Answer: "土"},
	{Prompt: "天空的「天」", Answer: "天"},
	{Prompt: "心臟的「心」", Answer: "心"},
	{Prompt: "龍年的「龍」", Answer: "龍"},
	{Prompt: "飛鳥的「鳥」", Answer: "鳥"},
}

// Deck walks a fixed question sequence with a wrapping cursor. The cursor
// starts before the first question; each Next advances it modulo the
// sequence length, so the deck never runs out.
type Deck struct {
	questions []Question
	cursor    int
}

// NewDeck builds a deck over the given sequence, or over DefaultBank when
// the sequence is empty.
func NewDeck(questions []Question) *Deck {
	if len(questions) == 0 {
		questions = DefaultBank
	}
	return &Deck{
		questions: append([]Question(nil), questions...),
		cursor:    -1,
	}
}

// Next advances the cursor and returns the question at the new index,
// together with the index itself.
func (d *Deck) Next() (Question, int) {
	d.cursor = (d.cursor + 1) % len(d.questions)
	return d.questions[d.cursor], d.cursor
}

// Len reports the sequence length.
func (d *Deck) Len() int {
	return len(d.questions)
}
