package typeChecker

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/winzigc/pkg/ast"
	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/lexer"
	"github.com/xplshn/winzigc/pkg/parser"
	"github.com/xplshn/winzigc/pkg/util"
)

// quiet swallows parser warnings such as a program name mismatch.
func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	util.SetOutput(&buf)
	t.Cleanup(func() { util.SetOutput(nil) })
	return &buf
}

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	quiet(t)
	prog, err := parser.ParseSource(src)
	require.NoError(t, err)
	return prog
}

func messages(diags []Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.String())
	}
	return out
}

func checkSource(t *testing.T, src string, want ...string) {
	t.Helper()
	got := messages(Check(parse(t, src)))
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyProgram(t *testing.T) {
	checkSource(t, `program winzigc:
    begin
    end
  winzigc.`)
}

func TestUsingUndeclaredGlobalVariable(t *testing.T) {
	checkSource(t, `program winzigc_test:
  var a: integer;
  begin
    read(b);
  end winzigc.`,
		":4:10: Undeclared variable: 'b'",
	)
}

func TestAssignmentDifferentTypes(t *testing.T) {
	checkSource(t, `program winzigc_test:
  var i: integer;
      c: char;
      b: boolean;

  begin
    i := 12;
    i := true;
    i := 'z';

    c := 'c';
    c := false;
    c := 14;

    b := true;
    b := 1;
    b := 'k';
  end winzigc.`,
		":8:7: Assignment type mismatch: 'integer' and 'boolean'",
		":9:7: Assignment type mismatch: 'integer' and 'char'",
		":12:7: Assignment type mismatch: 'char' and 'boolean'",
		":13:7: Assignment type mismatch: 'char' and 'integer'",
		":16:7: Assignment type mismatch: 'boolean' and 'integer'",
		":17:7: Assignment type mismatch: 'boolean' and 'char'",
	)
}

func TestUnaryOperationTypeMismatch(t *testing.T) {
	checkSource(t, `program winzigc:
    var I: integer;
        B: boolean;
    begin
      output(------100);
      output(+-+-+-200);
      output( not B);

      output(not I);
      output(-B);
      output( +B);
    end
  winzigc.`,
		":9:14: Unary operator 'not' can only be applied to boolean type",
		":10:14: Unary operator '-' can only be applied to integer type",
		":11:15: Unary operator '+' can only be applied to integer type",
	)
}

func TestBinaryOperationTypeMismatch(t *testing.T) {
	checkSource(t, `program winzigc:
    var i: integer;
        c: char;
        b: boolean;
    begin
      i := true and 1;
      b := -1 + ('c' or true);

      i :=: b;
      i := (125 + 100 * ( b and c / i) - 1) mod 2;
    end
  winzigc.`,
		":6:17: Binary operator 'and' can only be applied to boolean type",
		":6:9: Assignment type mismatch: 'integer' and 'boolean'",
		":7:22: Binary operator 'or' can only be applied to boolean type",
		":7:15: Binary operator '+' can only be applied to integer type",
		":7:9: Assignment type mismatch: 'boolean' and 'integer'",
		":9:9: Swap type mismatch: 'integer' and 'boolean'",
		":10:35: Binary operator '/' can only be applied to integer type",
		":10:29: Binary operator 'and' can only be applied to boolean type",
		":10:23: Binary operator '*' can only be applied to integer type",
	)
}

func TestUndeclaredFunctionUsage(t *testing.T) {
	checkSource(t, `program winzigc_test:
  var a: integer;

  function foo(bar: integer): integer;
  begin
    return 2 * bar;
  end foo;

  begin
    output(foo(7));  # foo is defined
    output(baz(10)); # baz is not defined
  end winzigc.`,
		":11:12: Calling an undeclared function: 'baz'",
	)
}

func TestUndeclaredLocalVariable(t *testing.T) {
	checkSource(t, `program winzigc:
  var i : integer;
      c : char;
      flag : boolean;

  function GetNext(d:integer):integer;
  begin
    if (flag = true) then
        read(i)
    else
	  read(c);
    flag := not(flag);
  end GetNext;

  function P(d:integer) : integer;
  var v: integer;
  begin
      v := i;
      d:=GetNext(3);
      return (v);
  end P;

  function T(d:integer) : integer;
  var u: integer;  # v is not declared
  begin
    v := P(3);
    while ((c = '*') or (c = '/')) do begin
        if (c = '*') then begin
              d:=GetNext(3);
        v := v * P(3);
        end
        else begin { c = '/' }
            d:=GetNext(3);
            v := v / P(3)
     end;
    end;
    return (v);
  end T;

  begin end winzigc.`,
		":26:5: Undeclared variable: 'v'",
		":30:9: Undeclared variable: 'v'",
		":30:14: Undeclared variable: 'v'",
		":34:13: Undeclared variable: 'v'",
		":34:18: Undeclared variable: 'v'",
		":37:13: Undeclared variable: 'v'",
	)
}

func TestFunctionArgumentTypeMismatch(t *testing.T) {
	checkSource(t, `program Ackerman:
  var m,n:integer;

  function ackerman(m,n:integer):integer;
  begin
     if m = 0 then return (n + 1)
        else if n = 0 then return (ackerman(m-1,1))
	     else return (ackerman(m-1,ackerman(m,n-1)))
  end ackerman;

  begin
     output(ackerman(false,'c')) # invalid argument types
  end Ackerman.`,
		":12:22: Function call argument type mismatch, Expected: 'integer', Found: 'boolean' in ackerman",
		":12:30: Function call argument type mismatch, Expected: 'integer', Found: 'char' in ackerman",
	)
}

func TestCaseValueTypeMismatch(t *testing.T) {
	checkSource(t, `program winzigc:
  var a1, a2, a3, a4, a5, a6, a7, a8, a9, a10 : integer;

  function StoreA ( index, value : integer ):integer;
  begin
    case index of
        1: a1 := value;
        2: a2 := value;
        true: a3 := value; # boolean true is not valid
        4: a4 := value;
        5: a5 := value;
        'y': a6 := value;  # char 'y' is not valid
        7: a7 := value;
        8: a8 := value;
        9: a9 := value;
        10: a10 := value;
        end;
  end StoreA;

  begin
   # do nothing
  end
  winzigc.`,
		":9:9: Case value type mismatch: 'boolean' and 'integer'",
		":12:11: Case value type mismatch: 'char' and 'integer'",
	)
}

func TestConditionsMustBeBoolean(t *testing.T) {
	checkSource(t, `program p:
var i: integer;
    c: char;
begin
  if i then i := 1;
  while c do i := 2;
  repeat i := 3 until i + 1;
  for (i := 0; 'x'; i := i + 1) output(i);
  if i < 1 then output(1) else output(2);
  while undefined do output(i)
end p.`,
		":5:3: If condition type should be boolean",
		":6:3: While condition type should be boolean",
		":7:3: Repeat until condition type should be boolean",
		":8:3: For condition type should be boolean",
		":10:9: Undeclared variable: 'undefined'",
	)
}

func TestReturnType(t *testing.T) {
	checkSource(t, `program p:
function f(a: integer): boolean;
begin
  return a;
  return nope
end f;
begin
  return 'c'
end p.`,
		":4:3: Return type mismatch: 'integer' and 'boolean' in f",
		":5:10: Undeclared variable: 'nope'",
	)
}

func TestArgumentCount(t *testing.T) {
	checkSource(t, `program p:
function f(a, b: integer): integer;
begin return a + b end f;
begin
  d := f(1);
  d := f(1, 2, undefinedvar);
  d := f(1, 'x')
end p.`,
		":5:8: Function call argument count mismatch: 'f'",
		":6:8: Function call argument count mismatch: 'f'",
		":7:15: Function call argument type mismatch, Expected: 'integer', Found: 'char' in f",
	)
}

func TestRedeclarations(t *testing.T) {
	checkSource(t, `program p:
var a: integer;
    a: char;
    d: boolean;
function f(x, x: integer): integer;
var f: integer;
    y: char;
    y: integer;
begin
  d := 1
end f;
begin
  d := 5;
  a := 'c'
end p.`,
		":3:5: Redeclaration of global variable: 'a'",
		":5:15: Redeclaration of local variable: 'x'",
		":6:5: Redeclaration of local variable: 'f'",
		":8:5: Redeclaration of local variable: 'y'",
	)
}

func TestUserTypes(t *testing.T) {
	checkSource(t, `program p:
type color = (red, green, blue);
var c: color;
    b: boolean;
function f(k: color): color;
type mood = (happy, sad);
var m: mood;
begin
  m := sad;
  f := k;
  return k + 1
end f;
begin
  c := green;
  c := f(blue);
  b := red;
  c := sad
end p.`,
		":16:5: Assignment type mismatch: 'boolean' and 'integer'",
		":17:8: Undeclared variable: 'sad'",
	)
}

func TestOrdinalConversions(t *testing.T) {
	checkSource(t, `program p:
var i: integer;
    c: char;
begin
  i := ord(c);
  c := chr(i);
  i := ord(i);
  c := chr(c);
  i := chr(65)
end p.`,
		":7:8: Unary operator 'ord' can only be applied to char type",
		":8:8: Unary operator 'chr' can only be applied to integer type",
		":9:5: Assignment type mismatch: 'integer' and 'char'",
	)
}

func TestCaseRangesAndSelector(t *testing.T) {
	checkSource(t, `program p:
var i: integer;
    c: char;
begin
  case i of
    1..'z': output(1);
    'a'..5: output(2);
    true..false: output(3);
    0..9: output(4);
  end;
  case 5 of
    5: output(5);
  end;
  case c of
    'a'..'z': output(6);
    q..'c': output(q);
  end
end p.`,
		":6:10: Case range end value type mismatch: 'char' and 'integer'",
		":7:7: Case range start value type mismatch: 'char' and 'integer'",
		":8:5: Case range start value type mismatch: 'boolean' and 'integer'",
		":8:11: Case range end value type mismatch: 'boolean' and 'integer'",
		":11:8: Case expression cannot be literal integer, boolean or char values",
		":16:5: Undeclared variable: 'q'",
		":16:20: Undeclared variable: 'q'",
	)
}

func TestEmptyOperandsDoNotCascade(t *testing.T) {
	prog := parse(t, `program p:
var i: integer;
begin
  i := x + 1;
  i := -y;
  if z then output(1);
  output(w = 1)
end p.`)
	got := messages(Check(prog))
	want := []string{
		":4:8: Undeclared variable: 'x'",
		":5:9: Undeclared variable: 'y'",
		":6:6: Undeclared variable: 'z'",
		":7:10: Undeclared variable: 'w'",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}

	sum := prog.Body[0].Data.(ast.AssignNode).Value
	assert.Equal(t, ast.TypeUnknown, sum.Typ)
	assert.Equal(t, ast.TypeInteger, sum.Data.(ast.BinaryOpNode).Right.Typ)
}

func TestCallBeforeDeclaration(t *testing.T) {
	checkSource(t, `program p:
function f(a: integer): integer;
begin return g(a) end f;
function g(a: integer): integer;
begin return a end g;
begin end p.`,
		":3:14: Calling an undeclared function: 'g'",
	)
}

func TestTypeTagsAreWritten(t *testing.T) {
	prog := parse(t, "program p: var i: integer; b: boolean; c: char; begin b := i + 1 < ord(c); output(i) end p.")
	require.Empty(t, Check(prog))

	cmpNode := prog.Body[0].Data.(ast.AssignNode).Value
	assert.Equal(t, ast.TypeBoolean, cmpNode.Typ)
	bin := cmpNode.Data.(ast.BinaryOpNode)
	assert.Equal(t, ast.TypeInteger, bin.Left.Typ)
	assert.Equal(t, ast.TypeInteger, bin.Right.Typ)
	assert.Equal(t, ast.TypeChar, bin.Right.Data.(ast.UnaryOpNode).Operand.Typ)
	assert.Equal(t, ast.TypeVoid, prog.Body[1].Typ)

	ast.Inspect(cmpNode, func(n *ast.Node) bool {
		assert.NotEqual(t, ast.TypeUnknown, n.Typ, "%s at %s", n.Type, n.Pos)
		return true
	})
}

func TestCheckIsIdempotent(t *testing.T) {
	prog := parse(t, `program p:
var i: integer;
begin
  i := true and 1;
  output(undefined);
  i :=: c
end p.`)

	tc := NewTypeChecker(nil)
	first := tc.Check(prog)
	second := tc.Check(prog)
	third := Check(prog)
	require.Len(t, first, 4)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("fresh checker differs (-first +third):\n%s", diff)
	}
}

func TestShadowWarning(t *testing.T) {
	src := `program p:
var g: integer;
function f(g: integer): integer;
var h: char;
begin return g end f;
begin end p.`

	out := quiet(t)
	prog, err := parser.ParseSource(src)
	require.NoError(t, err)

	assert.Empty(t, Check(prog))
	assert.Empty(t, out.String(), "shadow is off by default")

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnShadow, true)
	assert.Empty(t, NewTypeChecker(cfg).Check(prog))
	assert.Contains(t, out.String(), "'g' shadows a global variable [-Wshadow]")
	assert.NotContains(t, out.String(), "'h'")
}

func TestMissingReturnWarning(t *testing.T) {
	src := `program p:
var i: integer;
function f(a: integer): integer;
begin output(a) end f;
function g(a: integer): integer;
begin if a > 0 then return a else return 0 end g;
begin i := f(1) + g(2) end p.`

	out := quiet(t)
	prog, err := parser.ParseSource(src)
	require.NoError(t, err)

	assert.Empty(t, Check(prog))
	assert.Contains(t, out.String(), ":3:10: warning: Function 'f' has no return statement [-Wextra]")
	assert.NotContains(t, out.String(), "'g'")

	out.Reset()
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnExtra, false)
	assert.Empty(t, NewTypeChecker(cfg).Check(prog))
	assert.Empty(t, out.String())
}

func TestSymbols(t *testing.T) {
	prog := parse(t, `program p:
type color = (red, green, blue);
var x: color;
function f(a: integer; c: char): boolean;
var local: integer;
begin return true end f;
begin end p.`)

	tc := NewTypeChecker(nil)
	require.Empty(t, tc.Check(prog))

	var names []string
	for _, sym := range tc.Symbols() {
		names = append(names, sym.Name)
	}
	assert.Equal(t, []string{"d", "read", "output", "red", "green", "blue", "x", "f"}, names)

	syms := tc.Symbols()
	x, f := syms[6], syms[7]
	assert.Equal(t, ast.TypeInteger, x.Type)
	assert.Equal(t, "color", x.Decl.String())
	assert.Equal(t, SymFunc, f.Kind)
	assert.Equal(t, ast.TypeBoolean, f.Type)
	assert.Equal(t, []ast.Type{ast.TypeInteger, ast.TypeChar}, f.Params)
}

func TestDiagnosticFormat(t *testing.T) {
	d := Diagnostic{Pos: ast.Pos{Line: 3, Column: 4}, Message: "Undeclared variable: 'q'"}
	assert.Equal(t, ":3:4: Undeclared variable: 'q'", d.String())
	assert.Equal(t, "a.wz:3:4: Undeclared variable: 'q'", d.Format("a.wz"))
}

func TestCheckWithConfiguredLexer(t *testing.T) {
	cfg := config.NewConfig()
	toks, err := lexer.NewLexer([]rune("program p: var i: integer; begin i := 'a' end p."), 0, cfg).Tokens()
	require.NoError(t, err)
	prog, err := parser.NewParser(toks, cfg).Parse()
	require.NoError(t, err)

	diags := NewTypeChecker(cfg).Check(prog)
	require.Len(t, diags, 1)
	assert.Equal(t, ":1:36: Assignment type mismatch: 'integer' and 'char'", diags[0].String())
	assert.Equal(t, ":=", diags[0].Tok.Value)
}
