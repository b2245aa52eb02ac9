package domain

// Query is the tagged variant over the two user submission kinds.
// Exactly one query feeds one scoring run; the caller picks the scorer
// matching the variant explicitly.
type Query interface {
	isQuery()
}

// StructuredAnswer is one resolved questionnaire selection.
type StructuredAnswer struct {
	Category Category
	Value    string
}

// StructuredQuery carries the resolved questionnaire selections in answer
// order. "Don't care" selections are excluded during resolution, so an
// all-don't-care submission yields an empty (but valid) query.
type StructuredQuery struct {
	Answers []StructuredAnswer
}

func (StructuredQuery) isQuery() {}

// IsEmpty reports whether no usable answer survived resolution.
func (q StructuredQuery) IsEmpty() bool {
	return len(q.Answers) == 0
}

// FreeTextQuery carries a sanitized, length-bounded free-text submission.
type FreeTextQuery struct {
	Text string
}

func (FreeTextQuery) isQuery() {}

// IsEmpty reports whether sanitization left no text to score.
func (q FreeTextQuery) IsEmpty() bool {
	return q.Text == ""
}
