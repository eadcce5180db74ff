// Package statement holds named SQL statement templates and resolves a
// template plus a named-argument map into a concrete query string and an
// ordered argument list, according to a fixed placeholder style.
package statement

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Style is the backend-specific convention for bound parameters in
// formatted query text. A non-empty value is the positional marker emitted
// in place of each :param reference (e.g. "?"). StyleNamed leaves the
// named markers in the text for backends that bind by name.
type Style string

// StyleNamed keeps :param markers inline instead of substituting a
// positional marker.
const StyleNamed Style = ""

// ErrDuplicateName is returned by Load when a template with the same name
// is already registered. The existing template is kept.
var ErrDuplicateName = errors.New("duplicate statement name")

// ErrUnknownStatement is returned by Format for names never registered.
var ErrUnknownStatement = errors.New("unknown statement")

// MissingArgumentError reports a parameter the template references but the
// caller did not supply.
type MissingArgumentError struct {
	Statement string
	Param     string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("statement %q: missing argument %q", e.Statement, e.Param)
}

// Template is a named, parameterized SQL text registered before use.
// Immutable once loaded.
type Template struct {
	// Name is the unique key the template is registered and executed under.
	Name string `json:"name"`
	// Text is the raw SQL with :param placeholder references.
	Text string `json:"text"`
	// Params lists the placeholder names in declaration order.
	Params []string `json:"params"`
}

// Store holds loaded templates keyed by name. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	templates map[string]Template
	style     Style
}

// NewStore creates an empty store formatting under the given style.
func NewStore(style Style) *Store {
	return &Store{
		templates: make(map[string]Template),
		style:     style,
	}
}

// Load registers a template. A second template under the same name fails
// with ErrDuplicateName and does not replace the first.
func (s *Store) Load(t Template) error {
	if t.Name == "" {
		return errors.New("statement name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, t.Name)
	}
	if t.Params == nil {
		t.Params = ScanParams(t.Text)
	}
	s.templates[t.Name] = t
	return nil
}

// Names returns the registered template names, in no particular order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered templates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// Format resolves a registered template against a named-argument map.
// It returns the query text — with each :param reference replaced by the
// positional marker, or left inline under StyleNamed — together with the
// bound values ordered to match the markers as they appear in the text.
// Arguments not referenced by the template are ignored; a referenced
// argument missing from args is a MissingArgumentError. The result is
// deterministic for a given (template, args) pair.
func (s *Store) Format(name string, args map[string]any) (string, []any, error) {
	s.mu.RLock()
	t, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownStatement, name)
	}

	var sb strings.Builder
	sb.Grow(len(t.Text))
	var bound []any

	text := t.Text
	for i := 0; i < len(text); {
		c := text[i]
		if c != ':' || i+1 >= len(text) || !identStart(text[i+1]) {
			sb.WriteByte(c)
			i++
			continue
		}
		// Consume the :param token.
		j := i + 1
		for j < len(text) && identPart(text[j]) {
			j++
		}
		param := text[i+1 : j]
		val, ok := args[param]
		if !ok {
			return "", nil, &MissingArgumentError{Statement: name, Param: param}
		}
		if s.style == StyleNamed {
			sb.WriteString(text[i:j])
		} else {
			sb.WriteString(string(s.style))
		}
		bound = append(bound, val)
		i = j
	}

	return sb.String(), bound, nil
}

// ScanParams extracts the :param references from a statement text in
// order of first appearance, without duplicates.
func ScanParams(text string) []string {
	var params []string
	seen := make(map[string]bool)
	for i := 0; i < len(text); {
		if text[i] != ':' || i+1 >= len(text) || !identStart(text[i+1]) {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && identPart(text[j]) {
			j++
		}
		name := text[i+1 : j]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
		i = j
	}
	return params
}

func identStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identPart(c byte) bool {
	return identStart(c) || (c >= '0' && c <= '9')
}
