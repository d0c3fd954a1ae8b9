package recovery

// firstValue scans s for the first top-level JSON value (object or array),
// fenced or bare, and returns its span. If the value never closes before
// the input ends, the open remainder is returned with truncated=true.
//
// A byte-level state machine handles nested braces/brackets and string
// escaping. Iterating bytes is safe for the ASCII delimiters involved
// because UTF-8 never embeds ASCII bytes inside multi-byte sequences.
func firstValue(s string) (span string, truncated bool) {
	var depth int
	var start = -1
	var inString, escape bool
	var open, close byte

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		if start == -1 {
			if b == '{' {
				open, close = '{', '}'
			} else if b == '[' {
				open, close = '[', ']'
			} else {
				continue
			}
			start = i
			depth = 1
			continue
		}

		switch b {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], false
			}
		}
	}

	if start == -1 {
		return "", false
	}
	return s[start:], true
}

// scanObjects returns every balanced JSON object found in s, at any
// nesting depth. Used in salvage mode: when the outer envelope never
// closes, the per-suggestion objects inside it are still balanced and can
// be parsed independently. Enclosing objects appear after the objects they
// contain; callers filter by shape.
func scanObjects(s string) []string {
	var candidates []string
	var stack []int
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) > 0 {
				start := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				candidates = append(candidates, s[start:i+1])
			}
		}
	}

	return candidates
}
