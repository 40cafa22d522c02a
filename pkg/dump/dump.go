// Package dump renders compiler state for the --dump-* driver flags.
package dump

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"

	"github.com/xplshn/winzigc/pkg/ast"
	"github.com/xplshn/winzigc/pkg/token"
	"github.com/xplshn/winzigc/pkg/typeChecker"
	"github.com/xplshn/winzigc/pkg/util"
)

var astConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Tokens writes one row per token: index, start position, kind, lexeme.
func Tokens(w io.Writer, toks []token.Token, rec util.SourceFileRecord) {
	fmt.Fprintf(w, "%s: %d tokens, xxhash %016x\n", rec.Name, len(toks), rec.Hash)
	table := newTable(w, "#", "POS", "KIND", "LEXEME")
	for i, tok := range toks {
		table.Append([]string{
			strconv.Itoa(i),
			fmt.Sprintf("%d:%d", tok.Line, tok.StartColumn()),
			tok.Type.String(),
			tok.Value,
		})
	}
	table.Render()
}

// AST writes the annotated tree. Type tags print by name.
func AST(w io.Writer, prog *ast.Program) {
	if prog == nil {
		fmt.Fprintln(w, "<nil program>")
		return
	}
	nodes := 0
	count := func(*ast.Node) bool { nodes++; return true }
	for _, fn := range prog.Functions {
		for _, stmt := range fn.Body {
			ast.Inspect(stmt, count)
		}
	}
	for _, stmt := range prog.Body {
		ast.Inspect(stmt, count)
	}
	fmt.Fprintf(w, "program %s: %d functions, %d nodes\n", prog.Name, len(prog.Functions), nodes)
	astConfig.Fdump(w, prog)
}

// Symbols writes the global symbol table as left by the type checker.
func Symbols(w io.Writer, syms []*typeChecker.Symbol) {
	table := newTable(w, "NAME", "KIND", "TYPE", "PARAMS", "DECLARED")
	for _, sym := range syms {
		typ := sym.Type.String()
		if sym.Decl.Kind == ast.TypeUser {
			typ = sym.Decl.String()
		}
		params := make([]string, len(sym.Params))
		for i, p := range sym.Params {
			params[i] = p.String()
		}
		declared := "-"
		if sym.Tok.Line > 0 {
			declared = fmt.Sprintf("%d:%d", sym.Tok.Line, sym.Tok.StartColumn())
		}
		table.Append([]string{sym.Name, sym.Kind.String(), typ, strings.Join(params, ", "), declared})
	}
	table.Render()
}
