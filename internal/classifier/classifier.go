package classifier

import "context"

// Verdict is the classifier's bounded output for a piece of content.
type Verdict string

const (
	VerdictClear   Verdict = "clear"
	VerdictFlagged Verdict = "flagged"
)

// Source identifies which policy produced a verdict.
const (
	SourceModel   = "model"
	SourceKeyword = "keyword"
)

type Input struct {
	AuthorLabel string
	Text        string
	ImageURLs   []string
}

type Result struct {
	Verdict Verdict
	Reason  string
	Source  string
}

// Client classifies a message payload. Implementations must map provider
// failures onto the gateway error taxonomy so retry decisions stay with the
// gateway, not the transport.
type Client interface {
	Classify(ctx context.Context, in Input) (Result, error)
}
