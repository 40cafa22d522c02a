package typeChecker

import (
	"fmt"

	"github.com/xplshn/winzigc/pkg/ast"
	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/token"
	"github.com/xplshn/winzigc/pkg/util"
)

// Diagnostic is one collected semantic error.
type Diagnostic struct {
	Pos     ast.Pos
	Tok     token.Token
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf(":%d:%d: %s", d.Pos.Line, d.Pos.Column, d.Message)
}

// Format prefixes the diagnostic with a file path.
func (d Diagnostic) Format(path string) string {
	return path + d.String()
}

type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymParam
	SymMember
	SymFunc
	SymBuiltin
)

func (k SymbolKind) String() string {
	switch k {
	case SymParam:
		return "param"
	case SymMember:
		return "member"
	case SymFunc:
		return "function"
	case SymBuiltin:
		return "builtin"
	}
	return "var"
}

type Symbol struct {
	Name   string
	Kind   SymbolKind
	Type   ast.Type
	Decl   ast.TypeRef
	Params []ast.Type
	Tok    token.Token
	Next   *Symbol
}

func (s *Symbol) IsFunc() bool { return s.Kind == SymFunc || s.Kind == SymBuiltin }

type Scope struct {
	Symbols *Symbol
	Parent  *Scope
}

type TypeChecker struct {
	currentScope *Scope
	globalScope  *Scope
	currentFunc  *ast.Function
	cfg          *config.Config
	diags        []Diagnostic
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	tc := &TypeChecker{cfg: cfg}
	tc.reset()
	return tc
}

// Check type checks prog with the default configuration.
func Check(prog *ast.Program) []Diagnostic {
	return NewTypeChecker(nil).Check(prog)
}

func newScope(parent *Scope) *Scope { return &Scope{Parent: parent} }
func (tc *TypeChecker) enterScope()  { tc.currentScope = newScope(tc.currentScope) }
func (tc *TypeChecker) exitScope() {
	if tc.currentScope.Parent != nil {
		tc.currentScope = tc.currentScope.Parent
	}
}

func (tc *TypeChecker) reset() {
	tc.globalScope = newScope(nil)
	tc.currentScope = tc.globalScope
	tc.currentFunc = nil
	tc.diags = nil

	// d is the implicit discard variable.
	tc.addSymbol(&Symbol{Name: "d", Kind: SymVar, Type: ast.TypeInteger, Decl: ast.TypeRef{Kind: ast.TypeInteger}})
	tc.addSymbol(&Symbol{Name: "read", Kind: SymBuiltin, Type: ast.TypeVoid})
	tc.addSymbol(&Symbol{Name: "output", Kind: SymBuiltin, Type: ast.TypeVoid})
}

func (tc *TypeChecker) errorf(node *ast.Node, format string, args ...interface{}) {
	tc.diags = append(tc.diags, Diagnostic{Pos: node.Pos, Tok: node.Tok, Message: fmt.Sprintf(format, args...)})
}

func (tc *TypeChecker) addSymbol(sym *Symbol) *Symbol {
	sym.Next = tc.currentScope.Symbols
	tc.currentScope.Symbols = sym
	return sym
}

func (tc *TypeChecker) findSymbol(name string, findFuncs bool) *Symbol {
	return tc.findSymbolInScopes(name, findFuncs, false)
}

func (tc *TypeChecker) findSymbolInCurrentScope(name string, findFuncs bool) *Symbol {
	return tc.findSymbolInScopes(name, findFuncs, true)
}

func (tc *TypeChecker) findSymbolInScopes(name string, findFuncs, currentOnly bool) *Symbol {
	for s := tc.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name && sym.IsFunc() == findFuncs {
				return sym
			}
		}
		if currentOnly {
			break
		}
	}
	return nil
}

// Symbols lists the global scope in declaration order, seeded entries
// included. Locals are gone once Check returns.
func (tc *TypeChecker) Symbols() []*Symbol {
	var syms []*Symbol
	for sym := tc.globalScope.Symbols; sym != nil; sym = sym.Next {
		syms = append(syms, sym)
	}
	for i, j := 0, len(syms)-1; i < j; i, j = i+1, j-1 {
		syms[i], syms[j] = syms[j], syms[i]
	}
	return syms
}

// Check walks prog, writes a type tag into every expression node and returns
// the diagnostics in the order they were found. State is reset on entry, so
// checking the same program twice gives the same result.
func (tc *TypeChecker) Check(prog *ast.Program) []Diagnostic {
	tc.reset()
	if prog == nil {
		return nil
	}

	for _, def := range prog.Types {
		tc.declareUserType(def)
	}
	for _, v := range prog.Vars {
		tc.declareGlobal(v)
	}
	for _, fn := range prog.Functions {
		tc.checkFunction(fn)
	}
	tc.checkBody(prog.Body)
	return tc.diags
}

func (tc *TypeChecker) declareUserType(def *ast.UserTypeDef) {
	for _, name := range def.Values {
		tc.addSymbol(&Symbol{Name: name, Kind: SymMember, Type: ast.TypeInteger, Decl: ast.TypeRef{Kind: ast.TypeUser, Name: def.Name}, Tok: def.Tok})
	}
}

func (tc *TypeChecker) declareGlobal(v *ast.Variable) {
	if v.Name == "d" {
		return
	}
	if tc.findSymbolInCurrentScope(v.Name, false) != nil {
		tc.diags = append(tc.diags, Diagnostic{Pos: v.Pos, Tok: v.Tok, Message: fmt.Sprintf("Redeclaration of global variable: '%s'", v.Name)})
	}
	tc.addSymbol(&Symbol{Name: v.Name, Kind: SymVar, Type: v.Type.Resolved(), Decl: v.Type, Tok: v.Tok})
}

func (tc *TypeChecker) declareLocal(v *ast.Variable, kind SymbolKind) {
	if tc.findSymbolInCurrentScope(v.Name, false) != nil {
		tc.diags = append(tc.diags, Diagnostic{Pos: v.Pos, Tok: v.Tok, Message: fmt.Sprintf("Redeclaration of local variable: '%s'", v.Name)})
	} else if v.Name != "d" {
		if g := tc.findSymbolInScopes(v.Name, false, false); g != nil && g.Kind == SymVar {
			util.Warn(tc.cfg, config.WarnShadow, v.Tok, "'%s' shadows a global variable", v.Name)
		}
	}
	tc.addSymbol(&Symbol{Name: v.Name, Kind: kind, Type: v.Type.Resolved(), Decl: v.Type, Tok: v.Tok})
}

func (tc *TypeChecker) checkFunction(fn *ast.Function) {
	retType := fn.ReturnType.Resolved()
	sym := tc.addSymbol(&Symbol{Name: fn.Name, Kind: SymFunc, Type: retType, Decl: fn.ReturnType, Tok: fn.Tok})

	tc.enterScope()
	defer tc.exitScope()
	tc.currentFunc = fn
	defer func() { tc.currentFunc = nil }()

	// Inside its own body the function name reads as a variable of the
	// return type.
	tc.addSymbol(&Symbol{Name: fn.Name, Kind: SymVar, Type: retType, Decl: fn.ReturnType, Tok: fn.Tok})
	for _, param := range fn.Params {
		tc.declareLocal(param, SymParam)
		sym.Params = append(sym.Params, param.Type.Resolved())
	}
	for _, def := range fn.Types {
		tc.declareUserType(def)
	}
	for _, v := range fn.Locals {
		tc.declareLocal(v, SymVar)
	}
	tc.checkBody(fn.Body)
	if !hasReturn(fn.Body) {
		util.Warn(tc.cfg, config.WarnExtra, fn.Tok, "Function '%s' has no return statement", fn.Name)
	}
}

func hasReturn(body []*ast.Node) bool {
	found := false
	for _, stmt := range body {
		ast.Inspect(stmt, func(n *ast.Node) bool {
			if n.Type == ast.Return {
				found = true
			}
			return !found
		})
	}
	return found
}

func (tc *TypeChecker) checkBody(stmts []*ast.Node) {
	for _, stmt := range stmts {
		tc.checkNode(stmt)
	}
}

func (tc *TypeChecker) checkNode(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.AssignNode:
		left, right := tc.checkExpr(d.Target), tc.checkExpr(d.Value)
		if left != ast.TypeUnknown && right != ast.TypeUnknown && left != right {
			tc.errorf(node, "Assignment type mismatch: '%s' and '%s'", left, right)
		}
	case ast.SwapNode:
		left, right := tc.checkExpr(d.Left), tc.checkExpr(d.Right)
		if left != ast.TypeUnknown && right != ast.TypeUnknown && left != right {
			tc.errorf(node, "Swap type mismatch: '%s' and '%s'", left, right)
		}
	case ast.IfNode:
		tc.checkCondition(node, d.Cond, "If")
		tc.checkBody(d.Then)
		tc.checkBody(d.Else)
	case ast.ForNode:
		tc.checkNode(d.Init)
		tc.checkCondition(node, d.Cond, "For")
		tc.checkNode(d.Step)
		tc.checkBody(d.Body)
	case ast.WhileNode:
		tc.checkCondition(node, d.Cond, "While")
		tc.checkBody(d.Body)
	case ast.RepeatUntilNode:
		tc.checkBody(d.Body)
		tc.checkCondition(node, d.Cond, "Repeat until")
	case ast.CaseNode:
		tc.checkCase(node, d)
	case ast.ReturnNode:
		tc.checkReturn(node, d)
	default:
		tc.checkExpr(node)
	}
}

func (tc *TypeChecker) checkCondition(stmt, cond *ast.Node, kind string) {
	typ := tc.checkExpr(cond)
	if typ != ast.TypeUnknown && typ != ast.TypeBoolean {
		tc.errorf(stmt, "%s condition type should be boolean", kind)
	}
}

func (tc *TypeChecker) checkReturn(node *ast.Node, d ast.ReturnNode) {
	typ := tc.checkExpr(d.Value)
	if tc.currentFunc == nil {
		return
	}
	want := tc.currentFunc.ReturnType.Resolved()
	if typ != ast.TypeUnknown && typ != want {
		tc.errorf(node, "Return type mismatch: '%s' and '%s' in %s", typ, want, tc.currentFunc.Name)
	}
}

func (tc *TypeChecker) checkCase(node *ast.Node, d ast.CaseNode) {
	if ast.IsLiteral(d.Selector) {
		tc.errorf(d.Selector, "Case expression cannot be literal integer, boolean or char values")
	}
	selType := tc.checkExpr(d.Selector)

	mismatch := func(value *ast.Node, format string) {
		typ := tc.checkExpr(value)
		if typ != ast.TypeUnknown && selType != ast.TypeUnknown && typ != selType {
			tc.errorf(value, format, typ, selType)
		}
	}
	for _, clause := range d.Clauses {
		if clause.IsRange() {
			mismatch(clause.Value, "Case range start value type mismatch: '%s' and '%s'")
			mismatch(clause.High, "Case range end value type mismatch: '%s' and '%s'")
		} else {
			mismatch(clause.Value, "Case value type mismatch: '%s' and '%s'")
		}
		tc.checkBody(clause.Body)
	}
	tc.checkBody(d.Otherwise)
}

// checkExpr types node and its operands bottom-up and returns the tag it
// wrote. An operand with an empty tag already produced a diagnostic, so
// operators over it stay silent.
func (tc *TypeChecker) checkExpr(node *ast.Node) ast.Type {
	if node == nil {
		return ast.TypeUnknown
	}
	var typ ast.Type
	switch d := node.Data.(type) {
	case ast.IntegerLitNode:
		typ = ast.TypeInteger
	case ast.BooleanLitNode:
		typ = ast.TypeBoolean
	case ast.CharLitNode:
		typ = ast.TypeChar
	case ast.IdentNode:
		if sym := tc.findSymbol(d.Name, false); sym != nil {
			typ = sym.Type
		} else {
			tc.errorf(node, "Undeclared variable: '%s'", d.Name)
		}
	case ast.CallNode:
		typ = tc.checkCall(node, d)
	case ast.BinaryOpNode:
		typ = tc.checkBinaryOp(node, d)
	case ast.UnaryOpNode:
		typ = tc.checkUnaryOp(node, d)
	default:
		tc.checkNode(node)
		return ast.TypeUnknown
	}
	node.Typ = typ
	return typ
}

func (tc *TypeChecker) checkCall(node *ast.Node, d ast.CallNode) ast.Type {
	fn := tc.findSymbol(d.Name, true)
	if fn == nil {
		tc.errorf(node, "Calling an undeclared function: '%s'", d.Name)
		return ast.TypeUnknown
	}
	if fn.Kind == SymBuiltin {
		for _, arg := range d.Args {
			tc.checkExpr(arg)
		}
		return fn.Type
	}
	if len(fn.Params) != len(d.Args) {
		tc.errorf(node, "Function call argument count mismatch: '%s'", d.Name)
		return fn.Type
	}

	argTypes := make([]ast.Type, len(d.Args))
	for i, arg := range d.Args {
		argTypes[i] = tc.checkExpr(arg)
	}
	for i, arg := range d.Args {
		if argTypes[i] != ast.TypeUnknown && argTypes[i] != fn.Params[i] {
			tc.errorf(arg, "Function call argument type mismatch, Expected: '%s', Found: '%s' in %s", fn.Params[i], argTypes[i], d.Name)
		}
	}
	return fn.Type
}

func (tc *TypeChecker) checkBinaryOp(node *ast.Node, d ast.BinaryOpNode) ast.Type {
	left, right := tc.checkExpr(d.Left), tc.checkExpr(d.Right)
	if left == ast.TypeUnknown || right == ast.TypeUnknown {
		return ast.TypeUnknown
	}

	switch d.Op {
	case token.Plus, token.Minus, token.Star, token.Slash, token.Mod:
		if left != ast.TypeInteger || right != ast.TypeInteger {
			tc.errorf(node, "Binary operator '%s' can only be applied to integer type", d.Op)
		}
		return ast.TypeInteger
	case token.Lt, token.Lte, token.Gt, token.Gte:
		if left != right || (left != ast.TypeInteger && left != ast.TypeChar) {
			tc.errorf(node, "Binary operator '%s' can only be applied to integer or char type", d.Op)
		}
		return ast.TypeBoolean
	case token.Eq, token.Neq:
		if left != right {
			tc.errorf(node, "Binary operator '%s' can only be applied to same type", d.Op)
		}
		return ast.TypeBoolean
	case token.And, token.Or:
		if left != ast.TypeBoolean || right != ast.TypeBoolean {
			tc.errorf(node, "Binary operator '%s' can only be applied to boolean type", d.Op)
		}
		return ast.TypeBoolean
	}
	return ast.TypeUnknown
}

func (tc *TypeChecker) checkUnaryOp(node *ast.Node, d ast.UnaryOpNode) ast.Type {
	operand := tc.checkExpr(d.Operand)
	if operand == ast.TypeUnknown {
		return ast.TypeUnknown
	}

	var want, result ast.Type
	switch d.Op {
	case token.Minus, token.Plus, token.Succ, token.Pred:
		want, result = ast.TypeInteger, ast.TypeInteger
	case token.Not:
		want, result = ast.TypeBoolean, ast.TypeBoolean
	case token.Ord:
		want, result = ast.TypeChar, ast.TypeInteger
	case token.Chr:
		want, result = ast.TypeInteger, ast.TypeChar
	default:
		return ast.TypeUnknown
	}
	if operand != want {
		tc.errorf(node, "Unary operator '%s' can only be applied to %s type", d.Op, want)
	}
	return result
}
