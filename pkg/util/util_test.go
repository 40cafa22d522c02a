package util

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/token"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetColor("never"))
	t.Cleanup(func() {
		SetOutput(nil)
		SetSourceFiles(nil)
		_ = SetColor("auto")
	})
	return &buf
}

func TestSourceFileRecord(t *testing.T) {
	a := NewSourceFileRecord("a.wz", []rune("program a: begin end a."))
	b := NewSourceFileRecord("b.wz", []rune("program a: begin end a."))
	c := NewSourceFileRecord("c.wz", []rune("program c: begin end c."))
	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)

	capture(t)
	SetSourceFiles([]SourceFileRecord{a, c})
	rec, ok := SourceFile(1)
	require.True(t, ok)
	assert.Equal(t, "c.wz", rec.Name)
	_, ok = SourceFile(2)
	assert.False(t, ok)
}

func TestCompileError(t *testing.T) {
	tok := token.Token{Type: token.Ident, Value: "count", Line: 3, Column: 9, Len: 5}
	err := NewError(tok, "Undeclared variable: '%s'", tok.Value)
	assert.Equal(t, ":3:5: Undeclared variable: 'count'", err.Error())

	var ce *CompileError
	require.ErrorAs(t, error(err), &ce)
	assert.Equal(t, tok, ce.Tok)
}

func TestPrintError(t *testing.T) {
	out := capture(t)
	SetSourceFiles([]SourceFileRecord{
		NewSourceFileRecord("p.wz", []rune("program p:\n\tbegin x := @ end p.\n")),
	})

	PrintError(NewError(token.Token{Type: token.Unknown, Value: "@", Line: 2, Column: 13, Len: 1}, "Unknown token: '@'"))
	assert.Equal(t, "p.wz:2:13: error: Unknown token: '@'\n  \tbegin x := @ end p.\n  \t           ^\n", out.String())

	out.Reset()
	PrintError(errors.New("no input files specified."))
	assert.Equal(t, "winzigc: error: no input files specified.\n", out.String())
}

func TestDiagnostic(t *testing.T) {
	out := capture(t)
	SetSourceFiles([]SourceFileRecord{
		NewSourceFileRecord("q.wz", []rune("program q:\nbegin\n    output(total)\nend q.")),
	})

	tok := token.Token{Type: token.Ident, Value: "total", Line: 3, Column: 16, Len: 5}
	Diagnostic(tok, 3, 12, "Undeclared variable: 'total'")
	assert.Equal(t, "q.wz:3:12: error: Undeclared variable: 'total'\n      output(total)\n             ^~~~~\n", out.String())

	// Unknown file index: location only.
	out.Reset()
	tok.FileIndex = 4
	Diagnostic(tok, 3, 12, "x")
	assert.Equal(t, ":3:12: error: x\n", out.String())
}

func TestWarn(t *testing.T) {
	out := capture(t)
	cfg := config.NewConfig()
	tok := token.Token{Type: token.Ident, Value: "x", Line: 1, Column: 1, Len: 1}

	Warn(cfg, config.WarnShadow, tok, "'%s' shadows a global variable", "x")
	assert.Empty(t, out.String())

	cfg.SetWarning(config.WarnShadow, true)
	Warn(cfg, config.WarnShadow, tok, "'%s' shadows a global variable", "x")
	assert.Equal(t, ":1:1: warning: 'x' shadows a global variable [-Wshadow]\n", out.String())

	out.Reset()
	Warn(nil, config.WarnShadow, tok, "ignored")
	assert.Empty(t, out.String())
}

func TestSetColor(t *testing.T) {
	capture(t)
	for _, mode := range []string{"", "auto", "always", "never"} {
		assert.NoError(t, SetColor(mode), mode)
	}
	err := SetColor("sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color mode 'sometimes'")
}
