package token

type Type int

const (
	EOF Type = iota
	Unknown
	Whitespace
	LineComment
	BlockComment
	Newline
	Ident
	Integer
	Char
	String
	Program
	Var
	Const
	TypeKeyword
	Function
	Return
	Begin
	End
	Output
	If
	Then
	Else
	While
	Do
	Case
	Of
	Otherwise
	Repeat
	For
	Until
	Loop
	Pool
	Exit
	Mod
	Or
	And
	Not
	Read
	Succ
	Pred
	Chr
	Ord
	Eof
	True
	False
	Swap
	Assign
	DotDot
	Lte
	Neq
	Gte
	Colon
	Dot
	Lt
	Gt
	Eq
	Semi
	Comma
	LParen
	RParen
	Plus
	Minus
	Star
	Slash
)

var KeywordMap = map[string]Type{
	"program":   Program,
	"var":       Var,
	"const":     Const,
	"type":      TypeKeyword,
	"function":  Function,
	"return":    Return,
	"begin":     Begin,
	"end":       End,
	"output":    Output,
	"if":        If,
	"then":      Then,
	"else":      Else,
	"while":     While,
	"do":        Do,
	"case":      Case,
	"of":        Of,
	"otherwise": Otherwise,
	"repeat":    Repeat,
	"for":       For,
	"until":     Until,
	"loop":      Loop,
	"pool":      Pool,
	"exit":      Exit,
	"mod":       Mod,
	"or":        Or,
	"and":       And,
	"not":       Not,
	"read":      Read,
	"succ":      Succ,
	"pred":      Pred,
	"chr":       Chr,
	"ord":       Ord,
	"eof":       Eof,
	"true":      True,
	"false":     False,
}

var punctStrings = map[Type]string{
	Swap:   ":=:",
	Assign: ":=",
	DotDot: "..",
	Lte:    "<=",
	Neq:    "<>",
	Gte:    ">=",
	Colon:  ":",
	Dot:    ".",
	Lt:     "<",
	Gt:     ">",
	Eq:     "=",
	Semi:   ";",
	Comma:  ",",
	LParen: "(",
	RParen: ")",
	Plus:   "+",
	Minus:  "-",
	Star:   "*",
	Slash:  "/",
}

var classStrings = map[Type]string{
	EOF:          "end of program",
	Unknown:      "unknown",
	Whitespace:   "whitespace",
	LineComment:  "line comment",
	BlockComment: "block comment",
	Newline:      "newline",
	Ident:        "identifier",
	Integer:      "integer literal",
	Char:         "char literal",
	String:       "string literal",
}

// Reverse mapping from Type to the keyword or operator spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range punctStrings {
		TypeStrings[typ] = str
	}
}

// String returns the spelling of keywords and operators, and a class name for
// everything else.
func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	if s, ok := classStrings[t]; ok {
		return s
	}
	return "token"
}

// IsInternal reports kinds the scanner recognizes but never hands to the parser.
func (t Type) IsInternal() bool {
	switch t {
	case Whitespace, LineComment, BlockComment, Newline, EOF:
		return true
	}
	return false
}

// Token is a classified lexeme. Line and Column locate the last rune of the
// lexeme (the scanner cursor when the token completed), both 1-based.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// StartColumn is the column of the first rune of the lexeme.
func (t Token) StartColumn() int {
	if t.Len == 0 {
		return t.Column
	}
	return t.Column - t.Len + 1
}
