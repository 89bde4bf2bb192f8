package oracle

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("oracle: response contains no JSON")

// ExtractJSON decodes a model reply that is either bare JSON or JSON inside a
// fenced code block.
func ExtractJSON(text string) (any, error) {
	text = strings.TrimSpace(text)
	var out any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) < 3 {
		return nil, errNoJSON
	}
	snippet := strings.TrimSpace(parts[1])
	snippet = strings.TrimSpace(strings.TrimPrefix(snippet, "json"))
	if err := json.Unmarshal([]byte(snippet), &out); err != nil {
		return nil, errNoJSON
	}
	return out, nil
}

// ExtractList reads up to three items from a JSON array or a bulleted or
// line-separated reply.
func ExtractList(text string) []string {
	text = strings.TrimSpace(text)
	if parsed, err := ExtractJSON(text); err == nil {
		var items []any
		switch v := parsed.(type) {
		case []any:
			items = v
		case map[string]any:
			items, _ = v["topics"].([]any)
		}
		if items != nil {
			var out []string
			for _, item := range items {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			return capList(out)
		}
	}
	for _, sep := range []string{"\n", "•", "*", " - "} {
		if !strings.Contains(text, sep) {
			continue
		}
		var parts []string
		for _, p := range strings.Split(text, sep) {
			if p = strings.Trim(p, " -*•\t\r"); p != "" {
				parts = append(parts, stripNumbering(p))
			}
		}
		if len(parts) >= 3 {
			return capList(parts)
		}
	}
	if text == "" {
		return nil
	}
	return []string{text}
}

func stripNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func capList(items []string) []string {
	if len(items) > 3 {
		return items[:3]
	}
	return items
}
