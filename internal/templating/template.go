package templating

import (
	"fmt"
	"strings"
)

// Template delimiters.
const (
	exprOpen     = "{{"
	exprClose    = "}}"
	commentOpen  = "{#"
	commentClose = "#}"
	stmtOpen     = "{%"
)

// IsTemplate reports whether s looks like a template rather than a literal.
func IsTemplate(s string) bool {
	return strings.Contains(s, exprOpen) ||
		strings.Contains(s, stmtOpen) ||
		strings.Contains(s, commentOpen)
}

// segment is either literal text or an expression body.
type segment struct {
	text   string
	isExpr bool
}

// split breaks a template into literal and expression segments.
// Comment blocks are dropped.
func split(tpl string) ([]segment, error) {
	var segs []segment
	rest := tpl
	for rest != "" {
		i := indexOpen(rest)
		if i < 0 {
			segs = append(segs, segment{text: rest})
			break
		}
		if i > 0 {
			segs = append(segs, segment{text: rest[:i]})
		}
		rest = rest[i:]

		switch {
		case strings.HasPrefix(rest, stmtOpen):
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedBlock, tpl)
		case strings.HasPrefix(rest, commentOpen):
			end := strings.Index(rest, commentClose)
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnclosedTemplate, tpl)
			}
			rest = rest[end+len(commentClose):]
		default:
			end := strings.Index(rest, exprClose)
			if end < 0 {
				return nil, fmt.Errorf("%w: %q", ErrUnclosedTemplate, tpl)
			}
			body := strings.TrimSpace(rest[len(exprOpen):end])
			segs = append(segs, segment{text: body, isExpr: true})
			rest = rest[end+len(exprClose):]
		}
	}
	return segs, nil
}

// indexOpen returns the position of the first opening delimiter, or -1.
func indexOpen(s string) int {
	best := -1
	for _, d := range []string{exprOpen, commentOpen, stmtOpen} {
		if i := strings.Index(s, d); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// expressions returns the expression bodies of a template.
func expressions(tpl string) ([]string, error) {
	segs, err := split(tpl)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range segs {
		if s.isExpr {
			out = append(out, s.text)
		}
	}
	return out, nil
}
