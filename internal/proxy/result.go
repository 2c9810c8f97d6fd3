package proxy

import (
	"fmt"

	"github.com/Uuq114/JanusRelay/internal/request"
)

// Outcome tags how a completion call ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMissingKey
	OutcomeUpstreamStatus
	OutcomeTransport
	OutcomeUnexpected
)

const MissingKeyReply = "Error: GROQ_API_KEY not found in environment variables"

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissingKey:
		return "missing_key"
	case OutcomeUpstreamStatus:
		return "upstream_status"
	case OutcomeTransport:
		return "transport"
	case OutcomeUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Result is the outcome of one completion call. Exactly one of Content
// (OutcomeOK) or the failure fields is meaningful.
type Result struct {
	Outcome  Outcome
	Upstream string

	Content string
	Usage   request.TokenUsage

	StatusCode int
	Body       string
	Err        error
}

func (r Result) Failed() bool {
	return r.Outcome != OutcomeOK
}

// Reply renders the result as the text returned to the caller. Failures are
// described in the reply rather than raised.
func (r Result) Reply() string {
	switch r.Outcome {
	case OutcomeOK:
		return r.Content
	case OutcomeMissingKey:
		return MissingKeyReply
	case OutcomeUpstreamStatus:
		return fmt.Sprintf("Error from Groq API: %d - %s", r.StatusCode, r.Body)
	case OutcomeTransport:
		return fmt.Sprintf("Network error: %v", r.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", r.Err)
	}
}
