package domain

// Answer is the top-voted answer of one forum discussion.
// It is only ever built when Instruction is non-empty.
type Answer struct {
	Link        string `json:"link"`
	FullText    string `json:"full_text"`
	Instruction string `json:"instruction"`
}

// Result is one item of the answer sequence: either an Answer or the error
// that the link at the same position produced.
type Result struct {
	Answer Answer
	Err    error
}

// OK reports whether the result carries an answer.
func (r Result) OK() bool {
	return r.Err == nil
}
