package parser

import (
	"math"
	"strconv"

	"github.com/xplshn/winzigc/pkg/ast"
	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/lexer"
	"github.com/xplshn/winzigc/pkg/token"
	"github.com/xplshn/winzigc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config

	globalTypes map[string]*ast.UserTypeDef
	localTypes  map[string]*ast.UserTypeDef
}

// bailout carries the first structural error up to Parse.
type bailout struct{ err *util.CompileError }

// NewParser creates and initializes a new Parser from a token stream. The
// stream is the filtered output of lexer.Tokens; an EOF token is appended
// just past the last real token.
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	eof := token.Token{Type: token.EOF, Line: 1, Column: 1}
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		eof = token.Token{Type: token.EOF, FileIndex: last.FileIndex, Line: last.Line, Column: last.Column + 1}
	}
	toks := make([]token.Token, 0, len(tokens)+1)
	toks = append(append(toks, tokens...), eof)

	return &Parser{
		tokens:      toks,
		current:     toks[0],
		cfg:         cfg,
		globalTypes: make(map[string]*ast.UserTypeDef),
		localTypes:  make(map[string]*ast.UserTypeDef),
	}
}

// ParseSource scans and parses src with the default configuration.
func ParseSource(src string) (*ast.Program, error) {
	toks, err := lexer.Scan(src)
	if err != nil {
		return nil, err
	}
	return NewParser(toks, nil).Parse()
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.fail(p.current, "%s Found '%s'.", message, describe(p.current))
	return p.current
}

func (p *Parser) fail(tok token.Token, format string, args ...interface{}) {
	panic(bailout{util.NewError(tok, format, args...)})
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return tok.Value
}

// Parse builds the program. The first grammar violation is returned as a
// *util.CompileError and nothing else is parsed.
func (p *Parser) Parse() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()
	return p.parseProgram(), nil
}

// Top-Level Parsing
func (p *Parser) parseProgram() *ast.Program {
	p.expect(token.Program, "Expected 'program' at the start of the source.")
	nameTok := p.expect(token.Ident, "Expected program name after 'program'.")
	p.expect(token.Colon, "Expected ':' after program name.")

	prog := &ast.Program{Name: nameTok.Value, Tok: nameTok, Pos: ast.PosOf(nameTok)}
	prog.Types = p.parseTypes(ast.Global)
	prog.Vars = p.parseDclns(ast.Global)
	for p.check(token.Function) {
		prog.Functions = append(prog.Functions, p.parseFunction())
	}
	prog.Body = p.parseBody()

	endTok := p.expect(token.Ident, "Expected program name after 'end'.")
	prog.EndName = endTok.Value
	if prog.EndName != prog.Name {
		util.Warn(p.cfg, config.WarnProgramName, endTok, "Program '%s' closed as '%s'", prog.Name, prog.EndName)
	}
	p.expect(token.Dot, "Expected '.' after program name.")
	if !p.check(token.EOF) {
		p.fail(p.current, "Unexpected '%s' after the end of the program.", p.current.Value)
	}
	return prog
}

func (p *Parser) parseFunction() *ast.Function {
	p.expect(token.Function, "Expected 'function'.")
	nameTok := p.expect(token.Ident, "Expected function name after 'function'.")
	fn := &ast.Function{Name: nameTok.Value, Tok: nameTok, Pos: ast.PosOf(nameTok)}
	clear(p.localTypes)

	p.expect(token.LParen, "Expected '(' after function name.")
	if !p.check(token.RParen) {
		for {
			fn.Params = append(fn.Params, p.parseDcln(ast.Local)...)
			if !p.match(token.Semi) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after parameters.")
	p.expect(token.Colon, "Expected ':' before the return type.")
	fn.ReturnType = p.parseTypeName()
	p.expect(token.Semi, "Expected ';' after the function header.")

	fn.Types = p.parseTypes(ast.Local)
	fn.Locals = p.parseDclns(ast.Local)
	fn.Body = p.parseBody()

	endTok := p.expect(token.Ident, "Expected function name after 'end'.")
	if endTok.Value != fn.Name {
		p.fail(endTok, "function name mismatch: '%s' closed as '%s'", fn.Name, endTok.Value)
	}
	p.expect(token.Semi, "Expected ';' after function end.")
	clear(p.localTypes)
	return fn
}

func (p *Parser) parseTypes(scope ast.Scope) []*ast.UserTypeDef {
	if !p.match(token.TypeKeyword) {
		return nil
	}
	var types []*ast.UserTypeDef
	for {
		nameTok := p.expect(token.Ident, "Expected type name after 'type'.")
		p.expect(token.Eq, "Expected '=' after type name.")
		p.expect(token.LParen, "Expected '(' to open the value list.")
		def := &ast.UserTypeDef{Name: nameTok.Value, Tok: nameTok, Pos: ast.PosOf(nameTok), Scope: scope}
		for {
			def.Values = append(def.Values, p.expect(token.Ident, "Expected a value name.").Value)
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "Expected ')' to close the value list.")
		p.expect(token.Semi, "Expected ';' after type definition.")

		if scope == ast.Local {
			p.localTypes[def.Name] = def
		} else {
			p.globalTypes[def.Name] = def
		}
		types = append(types, def)
		if !p.check(token.Ident) {
			return types
		}
	}
}

func (p *Parser) parseDclns(scope ast.Scope) []*ast.Variable {
	if !p.match(token.Var) {
		return nil
	}
	var vars []*ast.Variable
	for {
		vars = append(vars, p.parseDcln(scope)...)
		p.expect(token.Semi, "Expected ';' after declaration.")
		if !p.check(token.Ident) {
			return vars
		}
	}
}

// parseDcln expands "a, b : T" to one variable per name.
func (p *Parser) parseDcln(scope ast.Scope) []*ast.Variable {
	var names []token.Token
	for {
		names = append(names, p.expect(token.Ident, "Expected variable name."))
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Colon, "Expected ':' before the type name.")
	typ := p.parseTypeName()

	vars := make([]*ast.Variable, len(names))
	for i, tok := range names {
		vars[i] = &ast.Variable{Name: tok.Value, Type: typ, Tok: tok, Pos: ast.PosOf(tok), Scope: scope}
	}
	return vars
}

func (p *Parser) parseTypeName() ast.TypeRef {
	tok := p.expect(token.Ident, "Expected a type name.")
	return p.createType(tok)
}

func (p *Parser) createType(tok token.Token) ast.TypeRef {
	if typ, ok := ast.PrimitiveType(tok.Value); ok {
		return ast.TypeRef{Kind: typ}
	}
	if _, ok := p.localTypes[tok.Value]; ok {
		return ast.TypeRef{Kind: ast.TypeUser, Name: tok.Value}
	}
	if _, ok := p.globalTypes[tok.Value]; ok {
		return ast.TypeRef{Kind: ast.TypeUser, Name: tok.Value}
	}
	p.fail(tok, "Unknown type: '%s'", tok.Value)
	return ast.TypeRef{}
}

// Statement Parsing
func (p *Parser) parseBody() []*ast.Node {
	p.expect(token.Begin, "Expected 'begin'.")
	var stmts []*ast.Node
	for {
		stmts = append(stmts, p.parseStmt()...)
		if !p.match(token.Semi) {
			break
		}
	}
	p.expect(token.End, "Expected 'end' to close 'begin'.")
	return stmts
}

// parseStmt returns a list so that nested bodies flatten into the
// enclosing one. The empty statement yields nothing.
func (p *Parser) parseStmt() []*ast.Node {
	tok := p.current
	switch {
	case p.check(token.Ident):
		if p.peek().Type == token.Swap {
			left := p.parseIdent()
			swapTok := p.expect(token.Swap, "Expected ':=:'.")
			right := p.parseIdent()
			return []*ast.Node{ast.NewSwap(swapTok, left, right)}
		}
		return []*ast.Node{p.parseAssign()}
	case p.match(token.Output):
		p.expect(token.LParen, "Expected '(' after 'output'.")
		var args []*ast.Node
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "Expected ')' after output list.")
		return []*ast.Node{ast.NewCall(tok, tok.Value, args)}
	case p.match(token.Read):
		p.expect(token.LParen, "Expected '(' after 'read'.")
		var args []*ast.Node
		for {
			args = append(args, p.parseIdent())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RParen, "Expected ')' after read list.")
		return []*ast.Node{ast.NewCall(tok, tok.Value, args)}
	case p.match(token.If):
		cond := p.parseExpr()
		p.expect(token.Then, "Expected 'then' after if condition.")
		thenBody := p.parseStmt()
		var elseBody []*ast.Node
		if p.match(token.Else) {
			elseBody = p.parseStmt()
		}
		return []*ast.Node{ast.NewIf(tok, cond, thenBody, elseBody)}
	case p.match(token.While):
		cond := p.parseExpr()
		p.expect(token.Do, "Expected 'do' after while condition.")
		return []*ast.Node{ast.NewWhile(tok, cond, p.parseStmt())}
	case p.match(token.Repeat):
		var body []*ast.Node
		for {
			body = append(body, p.parseStmt()...)
			if !p.match(token.Semi) {
				break
			}
		}
		p.expect(token.Until, "Expected 'until' after repeat body.")
		return []*ast.Node{ast.NewRepeatUntil(tok, body, p.parseExpr())}
	case p.match(token.For):
		p.expect(token.LParen, "Expected '(' after 'for'.")
		init := p.parseAssign()
		p.expect(token.Semi, "Expected ';' after for initializer.")
		cond := p.parseExpr()
		p.expect(token.Semi, "Expected ';' after for condition.")
		step := p.parseAssign()
		p.expect(token.RParen, "Expected ')' after for step.")
		return []*ast.Node{ast.NewFor(tok, init, cond, step, p.parseStmt())}
	case p.match(token.Case):
		return []*ast.Node{p.parseCase(tok)}
	case p.match(token.Return):
		return []*ast.Node{ast.NewReturn(tok, p.parseExpr())}
	case p.check(token.Begin):
		return p.parseBody()
	default:
		return nil
	}
}

func (p *Parser) parseIdent() *ast.Node {
	tok := p.expect(token.Ident, "Expected an identifier.")
	return ast.NewIdent(tok, tok.Value)
}

func (p *Parser) parseAssign() *ast.Node {
	target := p.parseIdent()
	tok := p.expect(token.Assign, "Expected ':=' after '"+target.Tok.Value+"'.")
	return ast.NewAssign(tok, target, p.parseExpr())
}

func (p *Parser) parseCase(tok token.Token) *ast.Node {
	selector := p.parseExpr()
	p.expect(token.Of, "Expected 'of' after case expression.")

	var clauses []ast.CaseClause
	for !p.check(token.Otherwise) && !p.check(token.End) {
		clause := ast.CaseClause{Value: p.parseConstValue()}
		if p.match(token.DotDot) {
			clause.High = p.parseConstValue()
			if !ast.IsLiteral(clause.Value) || !ast.IsLiteral(clause.High) {
				util.Warn(p.cfg, config.WarnCaseRange, p.previous, "Case range bounds should be literal values")
			}
		}
		p.expect(token.Colon, "Expected ':' after case value.")
		clause.Body = p.parseStmt()
		p.expect(token.Semi, "Expected ';' after case clause.")
		clauses = append(clauses, clause)
	}

	var otherwise []*ast.Node
	if p.match(token.Otherwise) {
		otherwise = p.parseStmt()
		p.match(token.Semi)
	}
	p.expect(token.End, "Expected 'end' to close 'case'.")
	return ast.NewCase(tok, selector, clauses, otherwise)
}

func (p *Parser) parseConstValue() *ast.Node {
	switch p.current.Type {
	case token.Integer:
		return p.parseIntegerLit()
	case token.Char:
		return p.parseCharLit()
	case token.True, token.False:
		p.advance()
		return ast.NewBooleanLit(p.previous, p.previous.Type == token.True)
	case token.Ident:
		return p.parseIdent()
	}
	p.fail(p.current, "Expected a case value. Found '%s'.", describe(p.current))
	return nil
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash, token.Mod:
		return 60
	case token.Plus, token.Minus:
		return 50
	case token.Lt, token.Lte, token.Gt, token.Gte, token.Eq, token.Neq:
		return 40
	case token.And:
		return 30
	case token.Or:
		return 20
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Node {
	return p.parseBinaryExpr(0)
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parsePrimaryExpr()
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			break
		}
		opTok := p.current
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
	return left
}

// parsePrimaryExpr also handles the prefix operators, which bind to the
// following primary only: "-a + b" is "(-a) + b".
func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch tok.Type {
	case token.Minus, token.Plus, token.Not, token.Succ, token.Pred:
		p.advance()
		return ast.NewUnaryOp(tok, tok.Type, p.parsePrimaryExpr())
	case token.Chr, token.Ord:
		if !p.cfg.IsFeatureEnabled(config.FeatOrdinalFuncs) {
			p.fail(tok, "'%s' is forbidden by the current feature set (-Fno-ordinal-funcs).", tok.Value)
		}
		p.advance()
		return ast.NewUnaryOp(tok, tok.Type, p.parsePrimaryExpr())
	case token.Integer:
		return p.parseIntegerLit()
	case token.Char:
		return p.parseCharLit()
	case token.True, token.False:
		p.advance()
		return ast.NewBooleanLit(tok, tok.Type == token.True)
	case token.Eof:
		if !p.cfg.IsFeatureEnabled(config.FeatEofLiteral) {
			p.fail(tok, "'eof' is forbidden by the current feature set (-Fno-eof-literal).")
		}
		p.advance()
		return ast.NewBooleanLit(tok, false)
	case token.Ident:
		if p.peek().Type == token.LParen {
			return p.parseCall()
		}
		return p.parseIdent()
	case token.LParen:
		p.advance()
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	case token.String:
		p.fail(tok, "String literals are not supported in expressions.")
	}
	p.fail(tok, "Expected an expression. Found '%s'.", describe(tok))
	return nil
}

func (p *Parser) parseCall() *ast.Node {
	nameTok := p.expect(token.Ident, "Expected function name.")
	p.expect(token.LParen, "Expected '(' after function name.")
	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after function arguments.")
	return ast.NewCall(nameTok, nameTok.Value, args)
}

func (p *Parser) parseIntegerLit() *ast.Node {
	tok := p.expect(token.Integer, "Expected an integer.")
	val, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		p.fail(tok, "Integer literal out of range: '%s'", tok.Value)
	}
	if val > math.MaxInt32 {
		util.Warn(p.cfg, config.WarnOverflow, tok, "Integer literal '%s' does not fit in 32 bits", tok.Value)
	}
	return ast.NewIntegerLit(tok, val)
}

func (p *Parser) parseCharLit() *ast.Node {
	tok := p.expect(token.Char, "Expected a character literal.")
	runes := []rune(tok.Value)
	return ast.NewCharLit(tok, runes[1])
}
