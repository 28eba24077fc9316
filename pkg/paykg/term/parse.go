package term

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/apd/v3"

	"github.com/hebuildapps/paykg/pkg/paykg/internalerr"
)

// Parse reads a single term from its textual form. Trailing input after the
// term is an error. On failure the returned error is a *internalerr.ParseError.
func Parse(input string) (*Term, error) {
	p := &parser{input: input}
	p.skipSpace()
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errorf("trailing input")
	}
	return t, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) errorf(msg string) error {
	return &internalerr.ParseError{Input: p.input, Pos: p.pos, Msg: msg}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) term() (*Term, error) {
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.input[p.pos]; {
	case c == '(':
		return p.compound()
	case c == ')':
		return nil, p.errorf("unexpected ')'")
	case c == '?':
		return p.variable()
	case c == '"':
		return p.quotedAtom()
	default:
		return p.symbol()
	}
}

func (p *parser) compound() (*Term, error) {
	p.pos++ // '('
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		return nil, p.errorf("empty compound")
	}
	head, err := p.term()
	if err != nil {
		return nil, err
	}
	functor := ""
	switch head.Kind {
	case KindAtom:
		functor = head.Name
	default:
		return nil, p.errorf("compound functor must be an atom")
	}

	var args []*Term
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, p.errorf("missing ')'")
		}
		if p.input[p.pos] == ')' {
			p.pos++
			return Compound(functor, args...), nil
		}
		arg, err := p.term()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
}

func (p *parser) variable() (*Term, error) {
	p.pos++ // '?'
	start := p.pos
	for p.pos < len(p.input) && isSymbolChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("empty variable name")
	}
	return Var(p.input[start:p.pos]), nil
}

func (p *parser) quotedAtom() (*Term, error) {
	p.pos++ // '"'
	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '"':
			p.pos++
			return Atom(b.String()), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return nil, p.errorf("unterminated escape")
			}
			b.WriteByte(p.input[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *parser) symbol() (*Term, error) {
	start := p.pos
	for p.pos < len(p.input) && isSymbolChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("unexpected character")
	}
	text := p.input[start:p.pos]
	if looksNumeric(text) {
		d, _, err := apd.NewFromString(text)
		if err != nil {
			return nil, p.errorf("malformed number")
		}
		return Num(d), nil
	}
	return Atom(text), nil
}

func isSymbolChar(c byte) bool {
	switch c {
	case '(', ')', '"', '?', ' ', '\t', '\n', '\r':
		return false
	}
	return true
}

// looksNumeric matches an optional sign, a leading digit, and only numeric
// syntax after that. Tokens like "0xd8dA..." or "123abc" contain letters
// outside exponent position and stay atoms; "1.2.3" looks numeric and is
// reported as malformed instead.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		if len(s) == 1 {
			return false
		}
		s = s[1:]
	}
	if s[0] < '0' || s[0] > '9' {
		return false
	}
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
		case c == '.' || c == 'e' || c == 'E':
		case (c == '+' || c == '-') && (s[i-1] == 'e' || s[i-1] == 'E'):
		default:
			return false
		}
	}
	return true
}
