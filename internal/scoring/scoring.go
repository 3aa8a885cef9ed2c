// internal/scoring/scoring.go
package scoring

import (
	"bytes"
	"encoding/json"
)

// Step is the number of points granted or retracted by a single judgment flip.
const Step = 10

// Judgment is the tri-state correctness verdict attached to a player's
// current answer. A slot starts each question at Unknown and moves to
// Correct or Incorrect on automatic judging or an admin override.
type Judgment int

const (
	Unknown Judgment = iota
	Correct
	Incorrect
)

func (j Judgment) String() string {
	switch j {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the verdict as true/false/null, which is what
// every client renders from.
func (j Judgment) MarshalJSON() ([]byte, error) {
	switch j {
	case Correct:
		return []byte("true"), nil
	case Incorrect:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (j *Judgment) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*j = Unknown
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b {
		*j = Correct
	} else {
		*j = Incorrect
	}
	return nil
}

// FromBool converts a definite verdict into a Judgment.
func FromBool(correct bool) Judgment {
	if correct {
		return Correct
	}
	return Incorrect
}

// Judge compares a recognized answer against the stored correct answer.
// Comparison is byte-exact; no whitespace or case normalization is applied.
func Judge(answer, correct string) Judgment {
	return FromBool(answer == correct)
}

// Delta computes the score adjustment for moving a slot from its previous
// verdict to a new definite one:
//
//	unknown   -> correct    +Step  (first correct call)
//	incorrect -> correct    +Step  (correcting a prior wrong call)
//	correct   -> incorrect  -Step  (retracting a prior correct call)
//	same verdict reissued        0
//	unknown   -> incorrect       0 (a wrong answer never costs points)
//
// Delta is pure: re-applying the same judgment is always a zero-delta no-op,
// which is what makes overrides safe to reissue in any order.
func Delta(old Judgment, newCorrect bool) int {
	switch {
	case newCorrect && old != Correct:
		return Step
	case !newCorrect && old == Correct:
		return -Step
	default:
		return 0
	}
}
