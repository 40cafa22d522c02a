// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"

	"github.com/xplshn/winzigc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	IntegerLit NodeType = iota
	BooleanLit
	CharLit
	Ident
	Call
	BinaryOp
	UnaryOp

	// Statements
	Assign
	Swap
	If
	For
	While
	RepeatUntil
	Case
	Return
)

var nodeTypeNames = [...]string{
	IntegerLit:  "IntegerLit",
	BooleanLit:  "BooleanLit",
	CharLit:     "CharLit",
	Ident:       "Ident",
	Call:        "Call",
	BinaryOp:    "BinaryOp",
	UnaryOp:     "UnaryOp",
	Assign:      "Assign",
	Swap:        "Swap",
	If:          "If",
	For:         "For",
	While:       "While",
	RepeatUntil: "RepeatUntil",
	Case:        "Case",
	Return:      "Return",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Type is the tag the type checker writes into expression nodes. The zero
// value is the empty tag and prints as "".
type Type int

const (
	TypeUnknown Type = iota
	TypeInteger
	TypeBoolean
	TypeChar
	TypeVoid
	TypeUser
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeVoid:
		return "void"
	case TypeUser:
		return "user"
	}
	return ""
}

// PrimitiveType maps the predefined type names. Anything else is either a
// user type or unknown.
func PrimitiveType(name string) (Type, bool) {
	switch name {
	case "integer":
		return TypeInteger, true
	case "boolean":
		return TypeBoolean, true
	case "char":
		return TypeChar, true
	}
	return TypeUnknown, false
}

// Pos is a 1-based source location.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Pos  Pos
	Data interface{}
	Typ  Type // Set by the type checker
}

// TypeRef names the declared type of a variable, parameter or function
// result. Name is only meaningful for TypeUser.
type TypeRef struct {
	Kind Type
	Name string
}

func (r TypeRef) String() string {
	if r.Kind == TypeUser {
		return r.Name
	}
	return r.Kind.String()
}

// Resolved is the tag an expression of this declared type carries. User
// types are enumerations over integer ordinals.
func (r TypeRef) Resolved() Type {
	if r.Kind == TypeUser {
		return TypeInteger
	}
	return r.Kind
}

type Scope int

const (
	Global Scope = iota
	Local
)

func (s Scope) String() string {
	if s == Local {
		return "local"
	}
	return "global"
}

// --- Node Data Structs ---
type IntegerLitNode struct{ Value int64 }
type BooleanLitNode struct{ Value bool }
type CharLitNode struct{ Value rune }
type IdentNode struct{ Name string }
type CallNode struct {
	Name string
	Args []*Node
}
type AssignNode struct{ Target, Value *Node }
type SwapNode struct{ Left, Right *Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op      token.Type
	Operand *Node
}
type IfNode struct {
	Cond       *Node
	Then, Else []*Node
}
type ForNode struct {
	Init, Cond, Step *Node
	Body             []*Node
}
type WhileNode struct {
	Cond *Node
	Body []*Node
}
type RepeatUntilNode struct {
	Body []*Node
	Cond *Node
}
type CaseNode struct {
	Selector  *Node
	Clauses   []CaseClause
	Otherwise []*Node
}
type ReturnNode struct{ Value *Node }

// CaseClause is a single value, or the inclusive range [Value, High] when
// High is set.
type CaseClause struct {
	Value *Node
	High  *Node
	Body  []*Node
}

func (c CaseClause) IsRange() bool { return c.High != nil }

// --- Declarations ---

type Variable struct {
	Name  string
	Type  TypeRef
	Tok   token.Token
	Pos   Pos
	Scope Scope
}

// UserTypeDef is an enumerated type. Members take ordinals in declaration
// order starting at zero.
type UserTypeDef struct {
	Name   string
	Values []string
	Tok    token.Token
	Pos    Pos
	Scope  Scope
}

func (u *UserTypeDef) Ordinal(name string) (int, bool) {
	for i, v := range u.Values {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

type Function struct {
	Name       string
	ReturnType TypeRef
	Params     []*Variable
	Types      []*UserTypeDef
	Locals     []*Variable
	Body       []*Node
	Tok        token.Token
	Pos        Pos
}

type Program struct {
	Name      string
	EndName   string
	Types     []*UserTypeDef
	Vars      []*Variable
	Functions []*Function
	Body      []*Node
	Tok       token.Token
	Pos       Pos
}

// --- Node Constructors ---

// PosOf is the start of tok. Char literals are the exception and are placed
// by their caller.
func PosOf(tok token.Token) Pos {
	return Pos{Line: tok.Line, Column: tok.StartColumn()}
}

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Pos: PosOf(tok), Data: data}
}

func NewIntegerLit(tok token.Token, value int64) *Node {
	return newNode(tok, IntegerLit, IntegerLitNode{Value: value})
}
func NewBooleanLit(tok token.Token, value bool) *Node {
	return newNode(tok, BooleanLit, BooleanLitNode{Value: value})
}

// NewCharLit positions the literal at its closing quote.
func NewCharLit(tok token.Token, value rune) *Node {
	node := newNode(tok, CharLit, CharLitNode{Value: value})
	node.Pos = Pos{Line: tok.Line, Column: tok.Column}
	return node
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, Call, CallNode{Name: name, Args: args})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewUnaryOp(tok token.Token, op token.Type, operand *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Operand: operand})
}
func NewAssign(tok token.Token, target, value *Node) *Node {
	return newNode(tok, Assign, AssignNode{Target: target, Value: value})
}
func NewSwap(tok token.Token, left, right *Node) *Node {
	return newNode(tok, Swap, SwapNode{Left: left, Right: right})
}
func NewIf(tok token.Token, cond *Node, thenBody, elseBody []*Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: thenBody, Else: elseBody})
}
func NewFor(tok token.Token, init, cond, step *Node, body []*Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Step: step, Body: body})
}
func NewWhile(tok token.Token, cond *Node, body []*Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewRepeatUntil(tok token.Token, body []*Node, cond *Node) *Node {
	return newNode(tok, RepeatUntil, RepeatUntilNode{Body: body, Cond: cond})
}
func NewCase(tok token.Token, selector *Node, clauses []CaseClause, otherwise []*Node) *Node {
	return newNode(tok, Case, CaseNode{Selector: selector, Clauses: clauses, Otherwise: otherwise})
}
func NewReturn(tok token.Token, value *Node) *Node {
	return newNode(tok, Return, ReturnNode{Value: value})
}

// IsLiteral reports whether node is an integer, boolean or char literal.
func IsLiteral(node *Node) bool {
	if node == nil {
		return false
	}
	switch node.Type {
	case IntegerLit, BooleanLit, CharLit:
		return true
	}
	return false
}

// Inspect walks node in source order, calling fn before each child. If fn
// returns false the node's children are skipped.
func Inspect(node *Node, fn func(*Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch d := node.Data.(type) {
	case CallNode:
		inspectList(d.Args, fn)
	case BinaryOpNode:
		Inspect(d.Left, fn)
		Inspect(d.Right, fn)
	case UnaryOpNode:
		Inspect(d.Operand, fn)
	case AssignNode:
		Inspect(d.Target, fn)
		Inspect(d.Value, fn)
	case SwapNode:
		Inspect(d.Left, fn)
		Inspect(d.Right, fn)
	case IfNode:
		Inspect(d.Cond, fn)
		inspectList(d.Then, fn)
		inspectList(d.Else, fn)
	case ForNode:
		Inspect(d.Init, fn)
		Inspect(d.Cond, fn)
		Inspect(d.Step, fn)
		inspectList(d.Body, fn)
	case WhileNode:
		Inspect(d.Cond, fn)
		inspectList(d.Body, fn)
	case RepeatUntilNode:
		inspectList(d.Body, fn)
		Inspect(d.Cond, fn)
	case CaseNode:
		Inspect(d.Selector, fn)
		for _, clause := range d.Clauses {
			Inspect(clause.Value, fn)
			Inspect(clause.High, fn)
			inspectList(clause.Body, fn)
		}
		inspectList(d.Otherwise, fn)
	case ReturnNode:
		Inspect(d.Value, fn)
	}
}

func inspectList(nodes []*Node, fn func(*Node) bool) {
	for _, n := range nodes {
		Inspect(n, fn)
	}
}
