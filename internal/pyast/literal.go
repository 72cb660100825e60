package pyast

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParseLiteral parses text strictly as a single literal expression: a number,
// string, bytes, True, False, None, or a list, tuple, set or dict of those.
// Names, calls, operators and multiple statements are rejected, so literal
// text can never smuggle executable code. The returned literal carries the
// canonical form in Value.
func ParseLiteral(text string) (*Literal, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLiteral, ErrSyntax)
	}
	src := []byte(text)
	tree, err := parseTree(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidLiteral, ErrSyntax, text)
	}

	stmts := namedChildren(root)
	if len(stmts) != 1 || stmts[0].Kind() != "expression_statement" {
		return nil, fmt.Errorf("%w: %q is not a single literal expression", ErrInvalidLiteral, text)
	}

	p := &parser{src: src}
	exprs := namedChildren(stmts[0])

	var (
		lit *Literal
		ok  bool
	)
	if len(exprs) == 1 && !hasToken(stmts[0], ",") {
		lit, ok, err = p.literal(exprs[0])
	} else {
		lit, ok, err = p.tuple(exprs, "("+strings.TrimSpace(text)+")")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLiteral, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a literal expression", ErrInvalidLiteral, text)
	}
	return lit, nil
}

// literal converts a literal CST node. ok is false when n is not a literal;
// err is set for literal syntax outside the supported subset.
func (p *parser) literal(n *tree_sitter.Node) (lit *Literal, ok bool, err error) {
	text := p.text(n)
	constant := func(v string) (*Literal, bool, error) {
		return &Literal{Value: v, Source: text}, true, nil
	}

	switch n.Kind() {
	case "integer", "float":
		v, err := canonicalNumber(text, n.Kind() == "float")
		if err != nil {
			return nil, false, literalError(n, err)
		}
		return constant(v)

	case "true":
		return constant("True")
	case "false":
		return constant("False")
	case "none":
		return constant("None")
	case "ellipsis":
		return constant("...")

	case "string":
		v, isBytes, err := decodeString(text)
		if err != nil {
			return nil, false, literalError(n, err)
		}
		if isBytes {
			return constant(bytesRepr(v))
		}
		return constant(strRepr(v))

	case "concatenated_string":
		var (
			sb      strings.Builder
			isBytes bool
		)
		for i, part := range namedChildren(n) {
			v, b, err := decodeString(p.text(part))
			if err != nil {
				return nil, false, literalError(part, err)
			}
			if i > 0 && b != isBytes {
				return nil, false, Unsupported(line(n), "cannot mix bytes and nonbytes literals")
			}
			isBytes = b
			sb.WriteString(v)
		}
		if isBytes {
			return constant(bytesRepr(sb.String()))
		}
		return constant(strRepr(sb.String()))

	case "unary_operator":
		op := n.ChildByFieldName("operator")
		arg := unparen(n.ChildByFieldName("argument"))
		if op == nil || arg == nil {
			return nil, false, nil
		}
		sign := p.text(op)
		if sign != "-" && sign != "+" {
			return nil, false, nil
		}
		if arg.Kind() != "integer" && arg.Kind() != "float" {
			return nil, false, nil
		}
		v, err := canonicalNumber(p.text(arg), arg.Kind() == "float")
		if err != nil {
			return nil, false, literalError(n, err)
		}
		return constant(sign + v)

	case "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) != 1 {
			return nil, false, nil
		}
		inner, ok, err := p.literal(kids[0])
		if !ok || err != nil {
			return nil, ok, err
		}
		inner.Source = text
		return inner, true, nil

	case "list", "set":
		elems, ok, err := p.elements(namedChildren(n))
		if !ok || err != nil {
			return nil, ok, err
		}
		open, closing := "[", "]"
		if n.Kind() == "set" {
			open, closing = "{", "}"
		}
		return &Literal{
			Value:      open + strings.Join(elems, ", ") + closing,
			Source:     text,
			Collection: true,
		}, true, nil

	case "tuple":
		return p.tuple(namedChildren(n), text)

	case "expression_list":
		return p.tuple(namedChildren(n), "("+text+")")

	case "dictionary":
		var entries []string
		for _, pair := range namedChildren(n) {
			if pair.Kind() != "pair" {
				return nil, false, nil
			}
			kv, ok, err := p.elements([]*tree_sitter.Node{
				pair.ChildByFieldName("key"),
				pair.ChildByFieldName("value"),
			})
			if !ok || err != nil {
				return nil, ok, err
			}
			entries = append(entries, kv[0]+": "+kv[1])
		}
		return &Literal{
			Value:      "{" + strings.Join(entries, ", ") + "}",
			Source:     text,
			Collection: true,
		}, true, nil
	}

	return nil, false, nil
}

// literalError reports Python 2 literal spellings as syntax errors and
// everything else as outside the supported subset.
func literalError(n *tree_sitter.Node, err error) error {
	if errors.Is(err, ErrSyntax) {
		return ErrSyntax
	}
	return Unsupported(line(n), "%v", err)
}

func (p *parser) tuple(nodes []*tree_sitter.Node, source string) (*Literal, bool, error) {
	elems, ok, err := p.elements(nodes)
	if !ok || err != nil {
		return nil, ok, err
	}

	value := "(" + strings.Join(elems, ", ") + ")"
	if len(elems) == 1 {
		value = "(" + elems[0] + ",)"
	}
	return &Literal{Value: value, Source: source, Collection: true}, true, nil
}

func (p *parser) elements(nodes []*tree_sitter.Node) ([]string, bool, error) {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return nil, false, nil
		}
		lit, ok, err := p.literal(n)
		if !ok || err != nil {
			return nil, ok, err
		}
		out = append(out, lit.Value)
	}
	return out, true, nil
}

// canonicalNumber returns the Python repr of a numeric literal.
func canonicalNumber(text string, isFloat bool) (string, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if clean == "" {
		return "", fmt.Errorf("empty numeric literal")
	}

	switch clean[len(clean)-1] {
	case 'j', 'J':
		v, err := parseFloat(clean[:len(clean)-1])
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(floatRepr(v), ".0") + "j", nil
	case 'l', 'L':
		return "", fmt.Errorf("%w: long integer suffix in %q", ErrSyntax, text)
	}

	if isFloat {
		v, err := parseFloat(clean)
		if err != nil {
			return "", err
		}
		return floatRepr(v), nil
	}

	// Python rejects leading zeros on non-zero decimals; Go would read octal.
	if len(clean) > 1 && clean[0] == '0' && clean[1] >= '0' && clean[1] <= '9' {
		if strings.Trim(clean, "0") != "" {
			return "", fmt.Errorf("%w: leading zeros in decimal integer literal %q", ErrSyntax, text)
		}
		return "0", nil
	}

	v, ok := new(big.Int).SetString(clean, 0)
	if !ok {
		return "", fmt.Errorf("malformed integer literal %q", text)
	}
	return v.String(), nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return v, nil
		}
		return 0, fmt.Errorf("malformed float literal %q", s)
	}
	return v, nil
}

// floatRepr formats v the way Python's repr does: shortest round-tripping
// digits, positional notation for exponents in [-4, 16).
func floatRepr(v float64) string {
	if math.IsInf(v, 0) {
		return "1e309"
	}

	sci := strconv.FormatFloat(v, 'e', -1, 64)
	_, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	if exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// DecodeString returns the text a single Python str literal evaluates to.
func DecodeString(text string) (string, error) {
	v, isBytes, err := decodeString(text)
	if err != nil {
		return "", err
	}
	if isBytes {
		return "", fmt.Errorf("%w: bytes literal", ErrInvalidLiteral)
	}
	return v, nil
}

// stringPrefixes are the lower-cased string prefixes Python 3 accepts.
var stringPrefixes = map[string]bool{
	"": true, "r": true, "u": true, "b": true, "br": true, "rb": true,
	"f": true, "fr": true, "rf": true, "t": true, "tr": true, "rt": true,
}

// decodeString evaluates a single Python string or bytes literal, prefix and
// quotes included. For bytes, the result holds the raw byte values.
func decodeString(text string) (value string, isBytes bool, err error) {
	start := strings.IndexAny(text, "'\"`")
	if start < 0 {
		return "", false, fmt.Errorf("malformed string literal")
	}
	if text[start] == '`' {
		return "", false, fmt.Errorf("%w: backtick repr", ErrSyntax)
	}

	prefix := strings.ToLower(text[:start])
	if !stringPrefixes[prefix] {
		return "", false, fmt.Errorf("%w: string prefix %q", ErrSyntax, text[:start])
	}
	if strings.ContainsAny(prefix, "ft") {
		return "", false, fmt.Errorf("f-strings are not supported")
	}
	raw := strings.Contains(prefix, "r")
	isBytes = strings.Contains(prefix, "b")

	body := text[start:]
	quote := body[:1]
	if strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`) {
		quote = body[:3]
	}
	if len(body) < 2*len(quote) || !strings.HasSuffix(body, quote) {
		return "", false, fmt.Errorf("unterminated string literal")
	}
	body = body[len(quote) : len(body)-len(quote)]

	if isBytes {
		for i := 0; i < len(body); i++ {
			if body[i] >= utf8.RuneSelf {
				return "", false, fmt.Errorf("bytes can only contain ASCII literal characters")
			}
		}
	}
	if raw {
		return body, isBytes, nil
	}

	value, err = unescape(body, isBytes)
	return value, isBytes, err
}

func unescape(s string, isBytes bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	emit := func(v rune) error {
		if isBytes {
			if v > 0xff {
				return fmt.Errorf("octal escape value %d out of range", v)
			}
			b.WriteByte(byte(v))
			return nil
		}
		if v > unicode.MaxRune {
			return fmt.Errorf("escape value %#x is not a valid code point", v)
		}
		if v >= 0xd800 && v <= 0xdfff {
			return fmt.Errorf("lone surrogate escapes are not supported")
		}
		b.WriteRune(v)
		return nil
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}

		e := s[i+1]
		i += 2
		switch e {
		case '\n':
		case '\r':
			if i < len(s) && s[i] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := rune(e - '0')
			for k := 0; k < 2 && i < len(s) && s[i] >= '0' && s[i] <= '7'; k++ {
				v = v*8 + rune(s[i]-'0')
				i++
			}
			if err := emit(v); err != nil {
				return "", err
			}
		case 'x', 'u', 'U':
			width := 2
			switch e {
			case 'u':
				width = 4
			case 'U':
				width = 8
			}
			if e != 'x' && isBytes {
				b.WriteByte('\\')
				b.WriteByte(e)
				continue
			}
			if i+width > len(s) {
				return "", fmt.Errorf("truncated \\%c escape", e)
			}
			v, err := strconv.ParseUint(s[i:i+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("truncated \\%c escape", e)
			}
			i += width
			if err := emit(rune(v)); err != nil {
				return "", err
			}
		case 'N':
			if isBytes {
				b.WriteString(`\N`)
				continue
			}
			return "", fmt.Errorf("named unicode escapes are not supported")
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

func reprQuote(s string) byte {
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		return '"'
	}
	return '\''
}

// strRepr quotes s the way Python's repr does for str.
func strRepr(s string) string {
	quote := reprQuote(s)

	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r < utf8.RuneSelf || unicode.IsPrint(r):
			b.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r < 0x10000:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// bytesRepr quotes s the way Python's repr does for bytes.
func bytesRepr(s string) string {
	quote := reprQuote(s)

	var b strings.Builder
	b.WriteString("b")
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
