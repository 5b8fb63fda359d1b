package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Keyword is the degraded-mode fallback: a local blocklist check used when
// the external classifier is unavailable or its quota is exhausted.
type Keyword struct {
	blocklist map[string]struct{}
}

func NewKeyword(words []string) *Keyword {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		for _, tok := range Tokenize(w) {
			set[tok] = struct{}{}
		}
	}
	return &Keyword{blocklist: set}
}

func (k *Keyword) Classify(ctx context.Context, in Input) (Result, error) {
	for _, tok := range Tokenize(in.Text) {
		if _, ok := k.blocklist[tok]; ok {
			slog.InfoContext(ctx, "blocklist match", "token", tok)
			return Result{
				Verdict: VerdictFlagged,
				Reason:  fmt.Sprintf("blocklisted term %q", tok),
				Source:  SourceKeyword,
			}, nil
		}
	}
	return Result{Verdict: VerdictClear, Source: SourceKeyword}, nil
}

// Tokenize splits free-form text into lower-case tokens with unicode
// normalization and accent folding, so trivial obfuscation (punctuation,
// diacritics) does not slip past the blocklist.
func Tokenize(text string) []string {
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = bare
	}
	return strings.Fields(folded)
}
