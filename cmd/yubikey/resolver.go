package yubikey

import (
	"fmt"
	"strings"
)

// Resolve maps a client-supplied query onto exactly one stored account
// name. Matching runs through five ordered steps, stopping at the first
// step that produces any match:
//
//  1. An empty query selects the first account in device order.
//  2. Exact, case-sensitive equality.
//  3. Case-insensitive equality.
//  4. For names structured with ':' or '/' separators, the query is
//     compared case-insensitively as a prefix or suffix of the trailing
//     path component.
//  5. Case-insensitive substring anywhere in the name.
//
// A step yielding several candidates fails with AmbiguousError rather than
// guessing; nothing matching anywhere fails with ErrAccountNotFound.
// The function is pure: same query + same list, same answer.
func Resolve(query string, names []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		if len(names) == 0 {
			return "", OpError{Op: "yubikey.resolve", Kind: ErrAccountNotFound, Msg: "device has no accounts"}
		}
		return names[0], nil
	}

	for _, n := range names {
		if n == query {
			return n, nil
		}
	}

	lq := strings.ToLower(query)

	var exact []string
	for _, n := range names {
		if strings.ToLower(n) == lq {
			exact = append(exact, n)
		}
	}
	if len(exact) > 0 {
		return settle(query, exact)
	}

	var structured []string
	for _, n := range names {
		if !strings.ContainsAny(n, ":/") {
			continue
		}
		last := trailingComponent(n)
		if strings.HasPrefix(last, lq) || strings.HasSuffix(last, lq) {
			structured = append(structured, n)
		}
	}
	if len(structured) > 0 {
		return settle(query, structured)
	}

	var substr []string
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), lq) {
			substr = append(substr, n)
		}
	}
	if len(substr) > 0 {
		return settle(query, substr)
	}

	return "", OpError{
		Op:   "yubikey.resolve",
		Kind: ErrAccountNotFound,
		Msg:  fmt.Sprintf("no account matches %q", query),
	}
}

// settle ends the step ladder: one candidate wins, several refuse.
func settle(query string, matches []string) (string, error) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", AmbiguousError{Query: query, Matches: matches}
}

// trailingComponent returns the last non-empty ':' / '/' separated segment
// of a structured name, lower-cased for comparison.
func trailingComponent(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ':' || r == '/'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}
