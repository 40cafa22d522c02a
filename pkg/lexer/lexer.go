package lexer

import (
	"unicode"

	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/token"
	"github.com/xplshn/winzigc/pkg/util"
)

// Lexer tracks line and column the way the WinZig reference scanner does:
// column counts the runes consumed on the current line, so a finished token
// is stamped with the column of its last rune.
type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 0, cfg: cfg,
	}
}

// Scan tokenizes source with the default configuration.
func Scan(source string) ([]token.Token, error) {
	return NewLexer([]rune(source), 0, nil).Tokens()
}

// Tokens returns every significant token up to, but not including, the end
// of input. Whitespace, comments and newlines are dropped.
func (l *Lexer) Tokens() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return toks, err
		}
		if tok.Type == token.EOF {
			return toks, nil
		}
		if !tok.Type.IsInternal() {
			toks = append(toks, tok)
		}
	}
}

// Next returns the next raw token, including the internal kinds.
func (l *Lexer) Next() (token.Token, error) {
	startPos := l.pos
	if l.isAtEnd() {
		return l.makeToken(token.EOF, startPos), nil
	}

	ch := l.peek()
	switch {
	case isIdentStart(ch):
		return l.identifierOrKeyword(startPos), nil
	case ch == '#':
		return l.lineComment(startPos), nil
	case ch == '{':
		return l.blockComment(startPos)
	case ch == '\n':
		l.advance()
		return l.makeToken(token.Newline, startPos), nil
	case ch == ' ' || ch == '\t' || ch == '\r':
		for c := l.peek(); c == ' ' || c == '\t' || c == '\r'; c = l.peek() {
			l.advance()
		}
		return l.makeToken(token.Whitespace, startPos), nil
	case unicode.IsDigit(ch):
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		return l.makeToken(token.Integer, startPos), nil
	case ch == '\'':
		return l.charLiteral(startPos)
	case ch == '"':
		return l.stringLiteral(startPos)
	}

	l.advance()
	switch ch {
	case ':':
		if l.peek() == '=' {
			l.advance()
			if l.match(':') {
				return l.makeToken(token.Swap, startPos), nil
			}
			return l.makeToken(token.Assign, startPos), nil
		}
		return l.makeToken(token.Colon, startPos), nil
	case '.':
		return l.matchThen('.', token.DotDot, token.Dot, startPos), nil
	case '<':
		if l.match('=') {
			return l.makeToken(token.Lte, startPos), nil
		}
		return l.matchThen('>', token.Neq, token.Lt, startPos), nil
	case '>':
		return l.matchThen('=', token.Gte, token.Gt, startPos), nil
	case '=':
		return l.makeToken(token.Eq, startPos), nil
	case ';':
		return l.makeToken(token.Semi, startPos), nil
	case ',':
		return l.makeToken(token.Comma, startPos), nil
	case '(':
		return l.makeToken(token.LParen, startPos), nil
	case ')':
		return l.makeToken(token.RParen, startPos), nil
	case '+':
		return l.makeToken(token.Plus, startPos), nil
	case '-':
		return l.makeToken(token.Minus, startPos), nil
	case '*':
		return l.makeToken(token.Star, startPos), nil
	case '/':
		return l.makeToken(token.Slash, startPos), nil
	}

	tok := l.makeToken(token.Unknown, startPos)
	return tok, util.NewError(tok, "Unknown token: '%c'", ch)
}

func isIdentStart(ch rune) bool { return unicode.IsLetter(ch) || ch == '_' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.source) {
		return 0
	}
	return l.source[l.pos+offset]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, startPos int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, startPos)
	}
	return l.makeToken(elseType, startPos)
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, startPos int) token.Token {
	return token.Token{
		Type: tokType, Value: string(l.source[startPos:l.pos]), FileIndex: l.fileIndex,
		Line: l.line, Column: l.column, Len: l.pos - startPos,
	}
}

func (l *Lexer) identifierOrKeyword(startPos int) token.Token {
	for isIdentStart(l.peek()) || unicode.IsDigit(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Ident, startPos)
	if tokType, isKeyword := token.KeywordMap[tok.Value]; isKeyword {
		tok.Type = tokType
	}
	return tok
}

func (l *Lexer) lineComment(startPos int) token.Token {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	return l.makeToken(token.LineComment, startPos)
}

func (l *Lexer) blockComment(startPos int) (token.Token, error) {
	startTok := token.Token{Type: token.BlockComment, Value: "{", FileIndex: l.fileIndex, Line: l.line, Column: l.column + 1, Len: 1}
	nested := l.cfg.IsFeatureEnabled(config.FeatNestedComments)
	l.advance()
	depth := 1
	for depth > 0 {
		if l.isAtEnd() {
			return startTok, util.NewError(startTok, "Unterminated block comment")
		}
		switch l.advance() {
		case '{':
			if nested {
				depth++
			}
		case '}':
			depth--
		}
	}
	tok := l.makeToken(token.BlockComment, startPos)
	// A multi-line comment ends on a later line than it started; Len is
	// only meaningful for carets when the comment fits on one line.
	if tok.Len > tok.Column {
		tok.Len = tok.Column
	}
	return tok, nil
}

func (l *Lexer) charLiteral(startPos int) (token.Token, error) {
	if l.peekAt(1) != '\'' && l.peekAt(1) != '\n' && l.peekAt(1) != 0 && l.peekAt(2) == '\'' {
		l.advance()
		l.advance()
		l.advance()
		return l.makeToken(token.Char, startPos), nil
	}
	l.advance()
	tok := l.makeToken(token.Unknown, startPos)
	return tok, util.NewError(tok, "Malformed character literal: expected exactly one character between quotes")
}

func (l *Lexer) stringLiteral(startPos int) (token.Token, error) {
	l.advance()
	for !l.isAtEnd() && l.peek() != '\n' {
		if l.advance() == '"' {
			return l.makeToken(token.String, startPos), nil
		}
	}
	tok := l.makeToken(token.String, startPos)
	return tok, util.NewError(tok, "Unterminated string literal")
}
