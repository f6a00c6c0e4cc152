package normalize

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// Decode strategies, tried in order. The first success wins:
//
//  1. The fragment parses directly as JSON.
//  2. The fragment embeds JSON in other text; a single bounded scan from the
//     first '{' or '[' finds the shortest balanced prefix and parses it.
//  3. The fragment is markup with a <script> block assigning a JSON literal
//     to a variable; the literal after '=' is extracted and parsed.
//
// Strategies 2 and 3 are best-effort degraded paths for exports that wrap
// their JSON in HTML; callers log when they fire.

const (
	strategyDirect = "direct"
	strategyPrefix = "balanced-prefix"
	strategyScript = "script-block"
)

// decodeFragment decodes raw fragment content into a generic JSON value.
// The returned strategy names which path succeeded; ok is false when every
// strategy failed.
func decodeFragment(content []byte) (v any, strategy string, ok bool) {
	if v, ok := parseJSON(content); ok {
		return v, strategyDirect, true
	}
	if v, ok := parseJSON(balancedJSONPrefix(content)); ok {
		return v, strategyPrefix, true
	}
	if v, ok := parseScriptJSON(content); ok {
		return v, strategyScript, true
	}
	return nil, "", false
}

// parseJSON accepts only object or array roots; scalar JSON is useless as a
// record source.
func parseJSON(data []byte) (any, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, false
	}
	return v, true
}

// balancedJSONPrefix returns the shortest balanced {...} or [...] prefix
// starting at the first opener in data. One forward pass, string- and
// escape-aware, no backtracking. Returns nil when no balanced prefix closes.
func balancedJSONPrefix(data []byte) []byte {
	start := bytes.IndexAny(data, "{[")
	if start < 0 {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return data[start : i+1]
			}
		}
	}
	return nil
}

// parseScriptJSON tokenizes markup, and for each <script> body containing an
// assignment, attempts to parse the balanced JSON literal after the '='.
func parseScriptJSON(content []byte) (any, bool) {
	tok := html.NewTokenizer(bytes.NewReader(content))
	inScript := false
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return nil, false
		case html.StartTagToken:
			name, _ := tok.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			body := string(tok.Text())
			eq := strings.IndexByte(body, '=')
			if eq < 0 {
				continue
			}
			if v, ok := parseJSON(balancedJSONPrefix([]byte(body[eq+1:]))); ok {
				return v, true
			}
		}
	}
}
