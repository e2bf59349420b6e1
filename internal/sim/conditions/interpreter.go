package conditions

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// Interpreter evaluates condition expressions and projects the dates on
// which they hold. One Interpreter belongs to one session and is not safe
// for concurrent use.
type Interpreter struct {
	caches *Caches
	log    *log.Logger
}

func NewInterpreter(logger *log.Logger) *Interpreter {
	return &Interpreter{caches: NewCaches(), log: logger}
}

func (in *Interpreter) Caches() *Caches { return in.caches }

func (in *Interpreter) printf(format string, args ...any) {
	if in.log != nil {
		in.log.Printf(format, args...)
	}
}

// Queries returns the parsed clauses of raw, cached by raw text.
func (in *Interpreter) Queries(raw string) []Query {
	return in.caches.queriesFor(raw)
}

// ResolverFor returns the resolver for q's verb. Unknown verbs get the
// unsupported resolver and are logged once.
func (in *Interpreter) ResolverFor(q Query) Resolver {
	r, cached := in.caches.resolver(q)
	if !cached && r.Verb() == VerbUnsupported {
		in.logOnce("verb:"+q.VerbName(), func() string {
			msg := fmt.Sprintf("cached unsupported resolver for condition verb %q", q.VerbName())
			if q.Err != nil {
				msg += ": " + q.Err.Error()
			}
			if hint := SuggestVerb(q.VerbName()); hint != "" {
				msg += fmt.Sprintf(" (did you mean %s?)", hint)
			}
			return msg
		})
	}
	return r
}

func (in *Interpreter) logOnce(key string, msg func() string) {
	if in.caches.markLogged(key) {
		in.printf("%s", msg())
	}
}

// Evaluate runs a single clause against ctx. Panics from the host checker are
// reported as unsupported.
func (in *Interpreter) Evaluate(q Query, ctx Context) (ok bool, err error) {
	r := in.ResolverFor(q)
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("%s: host checker panicked: %v: %w", q.Text, rec, ErrUnsupportedVerb)
			in.logOnce("panic:"+q.Text, err.Error)
		}
	}()
	return r.Evaluate(q, ctx)
}

// CheckResult lists the clauses of an expression that did not pass.
type CheckResult struct {
	Failed      []Query
	Malformed   []Query
	Unsupported []Query
}

func (r CheckResult) Passed() bool {
	return len(r.Failed) == 0 && len(r.Malformed) == 0 && len(r.Unsupported) == 0
}

// Check evaluates every clause of raw for today. All clauses are evaluated;
// nothing short-circuits.
func (in *Interpreter) Check(raw string, ctx Context) CheckResult {
	var res CheckResult
	switch strings.TrimSpace(raw) {
	case "", "TRUE":
		return res
	case "FALSE":
		res.Failed = append(res.Failed, ParseQuery("FALSE"))
		return res
	}
	for _, q := range in.Queries(raw) {
		ok, err := in.Evaluate(q, ctx)
		switch {
		case err == nil && ok:
		case err == nil:
			res.Failed = append(res.Failed, q)
		case errors.Is(err, ErrMalformedQuery), errors.Is(err, ErrEmptyQuery):
			res.Malformed = append(res.Malformed, q)
		default:
			in.logOnce("unsupported:"+q.Text, func() string {
				return fmt.Sprintf("condition %q is indeterminate: %v", q.Text, err)
			})
			res.Unsupported = append(res.Unsupported, q)
		}
	}
	return res
}

// ResolveFuture composes the future result for a whole expression.
// "" and TRUE hold today and tomorrow; FALSE never holds.
func (in *Interpreter) ResolveFuture(raw string, ctx Context) *FutureResult {
	switch strings.TrimSpace(raw) {
	case "", "TRUE":
		return TodayAndTomorrow(ctx.Today)
	case "FALSE":
		return EmptyFuture()
	}
	queries := in.Queries(raw)
	if len(queries) == 0 {
		return TodayAndTomorrow(ctx.Today)
	}

	out := NewFutureResult()
	for _, q := range queries {
		r := in.ResolverFor(q)
		if r.Verb() == VerbUnsupported && ctx.Host == nil {
			out.AddErrored(q.Text)
			continue
		}
		ok, err := in.Evaluate(q, ctx)
		if err != nil {
			out.AddErrored(q.Text)
			continue
		}
		if r.CanProjectDates() {
			out.Merge(in.projection(q, r, ctx))
		}
		out.AddStatus(q.Text, ok)
	}
	return out
}

func (in *Interpreter) projection(q Query, r Resolver, ctx Context) *FutureResult {
	if cached, ok := in.caches.future(q.Text, ctx.Today); ok {
		return cached
	}
	fr := FromDates(r.Project(q, ctx, ctx.lookahead()))
	in.caches.storeFuture(q.Text, fr)
	return fr
}

// Describe renders a human-readable requirement for each clause of raw,
// one per line.
func (in *Interpreter) Describe(raw string) string {
	switch strings.TrimSpace(raw) {
	case "", "TRUE":
		return "Always"
	case "FALSE":
		return "Never"
	}
	var lines []string
	for _, q := range in.Queries(raw) {
		if s, ok := in.caches.description(q.Text); ok {
			lines = append(lines, s)
			continue
		}
		s := in.ResolverFor(q).Describe(q)
		in.caches.storeDescription(q.Text, s)
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n")
}

// FailureVerb returns the verb family of a clause for block-reason mapping.
// Clauses with no arguments report the empty string.
func FailureVerb(q Query) string {
	if len(q.Tokens) < 2 {
		return ""
	}
	return q.Tokens[0]
}
