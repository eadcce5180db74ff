// Package source parses statement definition files into templates.
//
// The format is one statement per block: a header comment naming the
// statement, followed by its SQL text. Blank lines and plain comments
// between blocks are skipped.
//
//	-- name: insertUser
//	INSERT INTO users(name) VALUES (:name);
//
//	-- name: userByName
//	SELECT id, name FROM users WHERE name = :name;
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/seantiz/quill/internal/statement"
)

const namePrefix = "-- name:"

// Parse reads statement definitions from r. Statement text before the
// first name header is an error; duplicate names are left to the store
// to reject at load time.
func Parse(r io.Reader) ([]statement.Template, error) {
	var templates []statement.Template
	var current *statement.Template
	var text strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text.String()), ";"))
		current.Params = statement.ScanParams(current.Text)
		templates = append(templates, *current)
		current = nil
		text.Reset()
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, namePrefix) {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, namePrefix))
			if name == "" {
				return nil, fmt.Errorf("line %d: empty statement name", line)
			}
			current = &statement.Template{Name: name}
			continue
		}
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if trimmed == "" {
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: statement text before any %q header", line, namePrefix)
		}
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	flush()

	return templates, nil
}

// ParseFile reads statement definitions from the file at path.
func ParseFile(path string) ([]statement.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statement file: %w", err)
	}
	defer f.Close()

	templates, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return templates, nil
}
