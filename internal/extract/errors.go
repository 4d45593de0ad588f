package extract

import "fmt"

type ErrorKind int

const (
	MissingRequiredField ErrorKind = iota
	MalformedField
)

func (k ErrorKind) String() string {
	switch k {
	case MissingRequiredField:
		return "missing required field"
	case MalformedField:
		return "malformed field"
	default:
		return "extraction error"
	}
}

// ExtractionError is a per-payload failure. It marks the payload as an error
// in the run summary; it never aborts a run.
type ExtractionError struct {
	Kind  ErrorKind
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Field)
}
