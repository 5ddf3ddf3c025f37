package hooks

import (
	"errors"
	"regexp"
	"strings"
)

// Validation errors. Callers treat all of them as a rejected attempt.
var (
	ErrEmpty          = errors.New("generated text is empty")
	ErrNoToken        = errors.New("generated text has no hook token")
	ErrMultipleTokens = errors.New("generated text has more than one hook token")
	ErrUnknownToken   = errors.New("generated text uses an unknown hook token")
	ErrMalformedToken = errors.New("generated text has a malformed hook token")
)

var tokenRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validName(name string) bool {
	return nameRe.MatchString(name)
}

// Substitution is the result of a successful validation.
type Substitution struct {
	Text  string // text with the token replaced
	Hook  string // hook name that was used
	Value string // value substituted for the token
}

// Validate checks that text holds exactly one well-formed token naming a hook
// in the set and substitutes its current value.
func (s *Set) Validate(text string) (Substitution, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Substitution{}, ErrEmpty
	}

	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	switch {
	case len(matches) == 0:
		if strings.ContainsAny(text, "{}") {
			return Substitution{}, ErrMalformedToken
		}
		return Substitution{}, ErrNoToken
	case len(matches) > 1:
		return Substitution{}, ErrMultipleTokens
	}

	m := matches[0]
	name := text[m[2]:m[3]]
	rest := text[:m[0]] + text[m[1]:]
	if strings.ContainsAny(rest, "{}") {
		return Substitution{}, ErrMalformedToken
	}

	value, ok := s.Get(name)
	if !ok {
		return Substitution{}, ErrUnknownToken
	}

	return Substitution{
		Text:  text[:m[0]] + value + text[m[1]:],
		Hook:  name,
		Value: value,
	}, nil
}

// Render substitutes every known token in a template. Unknown tokens are
// left untouched.
func (s *Set) Render(template string) string {
	return tokenRe.ReplaceAllStringFunc(template, func(tok string) string {
		if v, ok := s.Get(tok[1 : len(tok)-1]); ok {
			return v
		}
		return tok
	})
}
