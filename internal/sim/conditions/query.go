package conditions

import (
	"errors"
	"strings"
)

var ErrEmptyQuery = errors.New("empty condition query")

// Query is one comma-separated clause of a condition expression.
// Tokens[0] is the upper-cased verb without the negation marker.
type Query struct {
	Tokens  []string
	Negated bool
	Text    string
	Verb    Verb
	Err     error
}

// Args returns the tokens after the verb.
func (q Query) Args() []string {
	if len(q.Tokens) < 2 {
		return nil
	}
	return q.Tokens[1:]
}

func (q Query) VerbName() string {
	if len(q.Tokens) == 0 {
		return ""
	}
	return q.Tokens[0]
}

// ParseQuery parses a single clause such as "!SEASON spring summer".
func ParseQuery(clause string) Query {
	fields := strings.Fields(clause)
	if len(fields) == 0 {
		return Query{Err: ErrEmptyQuery, Verb: VerbUnsupported}
	}
	negated := false
	verb := fields[0]
	if strings.HasPrefix(verb, "!") {
		negated = true
		verb = strings.TrimPrefix(verb, "!")
	}
	if verb == "" {
		return Query{Negated: negated, Text: strings.Join(fields, " "), Err: ErrEmptyQuery, Verb: VerbUnsupported}
	}
	verb = strings.ToUpper(verb)
	tokens := make([]string, 0, len(fields))
	tokens = append(tokens, verb)
	tokens = append(tokens, fields[1:]...)

	text := strings.Join(tokens, " ")
	if negated {
		text = "!" + text
	}
	return Query{
		Tokens:  tokens,
		Negated: negated,
		Text:    text,
		Verb:    LookupVerb(verb),
	}
}

// Parse splits a full expression on commas. Blank clauses are dropped.
func Parse(raw string) []Query {
	parts := strings.Split(raw, ",")
	out := make([]Query, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, ParseQuery(p))
	}
	return out
}
