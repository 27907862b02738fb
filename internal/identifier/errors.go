package identifier

import "errors"

// Kind classifies why an identification did not come straight from the model.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindMalformed   Kind = "malformed_response"
	KindNotAnInsect Kind = "not_an_insect"
)

// ErrNotAnInsect matches any ClassificationError of KindNotAnInsect.
var ErrNotAnInsect = errors.New("subject is not an insect")

// ClassificationError describes a failed identification attempt.
type ClassificationError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *ClassificationError) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return string(e.Kind) + ": " + e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		return string(e.Kind) + ": " + e.Detail
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *ClassificationError) Unwrap() error { return e.Err }

func (e *ClassificationError) Is(target error) bool {
	return target == ErrNotAnInsect && e.Kind == KindNotAnInsect
}

// Message is the text shown to a user for a not-an-insect result.
func (e *ClassificationError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "This image does not appear to show an insect."
}
