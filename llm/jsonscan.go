package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	controlCharsRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// GreedyObject returns the text from the first '{' to the last '}'
func GreedyObject(text string) (string, bool) {
	return greedy(text, '{', '}')
}

// GreedyArray returns the text from the first '[' to the last ']'
func GreedyArray(text string) (string, bool) {
	return greedy(text, '[', ']')
}

func greedy(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeObject decodes the JSON object embedded in a model reply
func DecodeObject(text string, target any) error {
	return decodeFragment(text, '{', '}', target)
}

// DecodeArray decodes the JSON array embedded in a model reply
func DecodeArray(text string, target any) error {
	return decodeFragment(text, '[', ']', target)
}

// decodeFragment tries the greedy span first, then progressively more
// forgiving recoveries: fenced code blocks, the first balanced span, and
// common syntax repairs.
func decodeFragment(text string, open, close byte, target any) error {
	fragment, ok := greedy(text, open, close)
	if !ok {
		return fmt.Errorf("%w: expected %c...%c in %q", ErrNoJSON, open, close, truncate(text, 100))
	}

	if err := json.Unmarshal([]byte(fragment), target); err == nil {
		return nil
	}

	candidates := []string{}
	if fenced := extractFromMarkdown(text); fenced != "" {
		if inner, ok := greedy(fenced, open, close); ok {
			candidates = append(candidates, inner)
		}
	}
	if balanced := extractBalanced(fragment, rune(open), rune(close)); balanced != "" {
		candidates = append(candidates, balanced)
	}
	candidates = append(candidates, cleanJSON(fragment))

	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(cleanJSON(candidate)), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrMalformedJSON, truncate(fragment, 100))
}

// extractFromMarkdown returns the body of the first fenced code block
func extractFromMarkdown(input string) string {
	if matches := fencedJSONRe.FindStringSubmatch(input); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// extractBalanced returns the first span with balanced delimiters,
// ignoring delimiters inside strings
func extractBalanced(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false
	start := -1

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// cleanJSON fixes common model formatting mistakes
func cleanJSON(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "\ufeff")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = controlCharsRe.ReplaceAllString(s, "")
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
