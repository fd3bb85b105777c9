package domain

// Completeness is the typed result of a completeness check. It is either
// Complete or Incomplete.
type Completeness interface {
	completeness()
}

// Complete means every field required by the schema policy is present.
type Complete struct{}

// Incomplete lists the policy fields that still need to be supplied.
type Incomplete struct {
	Missing []string
}

func (Complete) completeness()   {}
func (Incomplete) completeness() {}

// IsComplete reports whether c is Complete.
func IsComplete(c Completeness) bool {
	_, ok := c.(Complete)
	return ok
}

// Extraction maps field names to the values the model found in the message.
// Absent fields are omitted.
type Extraction map[string]any
