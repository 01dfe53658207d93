package engine

// Status classifies how a trigger handler finished. Retryable failures
// are surfaced to the dead-letter list instead of being swallowed, so
// recovery never depends on waiting for the next unrelated write.
type Status int

const (
	StatusOK Status = iota
	StatusRetryable
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRetryable:
		return "retryable"
	case StatusPermanent:
		return "permanent"
	}
	return "unknown"
}

type Outcome struct {
	Status Status
	Err    error
	// Note carries handler-specific detail for logs ("noop", counts).
	Note string
}

func OK(note string) Outcome {
	return Outcome{Status: StatusOK, Note: note}
}

func Retryable(err error) Outcome {
	return Outcome{Status: StatusRetryable, Err: err}
}

func Permanent(err error, note string) Outcome {
	return Outcome{Status: StatusPermanent, Err: err, Note: note}
}
