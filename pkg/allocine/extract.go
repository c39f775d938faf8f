package allocine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Entities is the decoded jsEntities blob: opaque keys mapped to arbitrary values,
// some of which describe a movie. Keys keeps the order in which the page lists them.
type Entities struct {
	Keys   []string
	Values map[string]any
}

// orderedKeys returns Keys, skipping those absent from Values, followed in sorted order by any
// key of Values that Keys misses.
func (e Entities) orderedKeys() []string {
	keys := make([]string, 0, len(e.Values))
	seen := make(map[string]bool, len(e.Values))
	for _, k := range e.Keys {
		if _, ok := e.Values[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range e.Values {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)

	return append(keys, rest...)
}

// Matcher locates the jsEntities object literal inside a page.
type Matcher struct {
	// Name identifies the matcher in error messages.
	Name string
	// Find returns the captured object literal and whether the page matched.
	Find func(page string) (string, bool)
}

// DefaultMatchers are tried in order by ExtractEntities.
var DefaultMatchers = []Matcher{
	regexpMatcher("assignment", `(?s)jsEntities\s*=\s*(\{.*?\});`),
	regexpMatcher("const", `(?s)const\s+jsEntities\s*=\s*(\{.*?\});`),
	regexpMatcher("var", `(?s)var\s+jsEntities\s*=\s*(\{.*?\});`),
	{Name: "script", Find: findInScripts},
}

// ExtractEntities extracts and decodes the jsEntities blob embedded in page using DefaultMatchers.
func ExtractEntities(page []byte) (Entities, error) {
	return FirstMatch(string(page), DefaultMatchers...)
}

// FirstMatch tries matchers in order and returns the entities decoded from the first capture that
// is a valid JSON object. A matcher whose capture fails to decode does not stop the search.
func FirstMatch(page string, matchers ...Matcher) (Entities, error) {
	var decodeErrs []error
	for _, m := range matchers {
		capture, ok := m.Find(page)
		if !ok {
			continue
		}

		entities, err := decodeEntities(capture)
		if err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("matcher %s: %w", m.Name, err))
			continue
		}

		return entities, nil
	}

	if len(decodeErrs) == 0 {
		return Entities{}, fmt.Errorf("%w: jsEntities not found in page", ErrExtraction)
	}

	return Entities{}, fmt.Errorf("%w: jsEntities found but invalid JSON: %w", ErrExtraction, errors.Join(decodeErrs...))
}

// decodeEntities decodes a JSON object, recording its members in document order.
func decodeEntities(capture string) (Entities, error) {
	dec := json.NewDecoder(strings.NewReader(capture))

	tok, err := dec.Token()
	if err != nil {
		return Entities{}, fmt.Errorf("failed to json.Decoder.Token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Entities{}, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	entities := Entities{Values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Entities{}, fmt.Errorf("failed to json.Decoder.Token: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return Entities{}, fmt.Errorf("expected an object key, got %v", tok)
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return Entities{}, fmt.Errorf("failed to json.Decoder.Decode %q: %w", key, err)
		}

		// Later duplicates win, like json.Unmarshal, but keep the first position.
		if _, dup := entities.Values[key]; !dup {
			entities.Keys = append(entities.Keys, key)
		}
		entities.Values[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return Entities{}, fmt.Errorf("failed to json.Decoder.Token: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Entities{}, errors.New("unexpected data after the JSON object")
	}

	return entities, nil
}

func regexpMatcher(name, expr string) Matcher {
	re := regexp.MustCompile(expr)
	return Matcher{
		Name: name,
		Find: func(page string) (string, bool) {
			m := re.FindStringSubmatch(page)
			if len(m) != 2 {
				return "", false
			}
			return m[1], true
		},
	}
}

// findInScripts walks the page scripts and captures the object assigned to jsEntities with a
// brace scanner, which tolerates "};" sequences inside JSON strings.
func findInScripts(page string) (string, bool) {
	if !strings.Contains(page, "jsEntities") {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}

	var capture string
	var found bool
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		capture, found = scanAssignment(s.Text(), "jsEntities")
		return !found
	})

	return capture, found
}

// scanAssignment finds `name = {...}` in src and returns the balanced object literal.
func scanAssignment(src, name string) (string, bool) {
	for offset := 0; ; {
		i := strings.Index(src[offset:], name)
		if i < 0 {
			return "", false
		}
		pos := offset + i + len(name)
		offset = pos

		pos = skipSpaces(src, pos)
		if pos >= len(src) || src[pos] != '=' {
			continue
		}
		if pos+1 < len(src) && src[pos+1] == '=' {
			continue
		}
		pos = skipSpaces(src, pos+1)
		if pos >= len(src) || src[pos] != '{' {
			continue
		}

		if end, ok := matchBrace(src, pos); ok {
			return src[pos : end+1], true
		}
	}
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
