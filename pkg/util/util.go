package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/token"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
	Hash    uint64
}

func NewSourceFileRecord(name string, content []rune) SourceFileRecord {
	return SourceFileRecord{Name: name, Content: content, Hash: xxhash.Sum64String(string(content))}
}

var (
	sourceFiles    []SourceFileRecord
	output         io.Writer = colorable.NewColorableStderr()
	outputIsStderr           = true
	colorMode                = "auto"

	errorLabel = color.New(color.FgRed, color.Bold)
	warnLabel  = color.New(color.FgYellow, color.Bold)
	caretColor = color.New(color.FgGreen)
)

func init() { applyColorMode() }

// SetSourceFiles stores the source code for all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// SourceFile returns the record registered under index i.
func SourceFile(i int) (SourceFileRecord, bool) {
	if i < 0 || i >= len(sourceFiles) {
		return SourceFileRecord{}, false
	}
	return sourceFiles[i], true
}

// SetOutput redirects errors, warnings and diagnostics. Colour detection is
// re-evaluated against the new writer. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		output, outputIsStderr = colorable.NewColorableStderr(), true
	} else {
		output, outputIsStderr = w, false
	}
	applyColorMode()
}

// SetColor accepts "auto", "always" or "never".
func SetColor(mode string) error {
	switch mode {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode '%s' (want auto, always or never)", mode)
	}
	if mode == "" {
		mode = "auto"
	}
	colorMode = mode
	applyColorMode()
	return nil
}

func applyColorMode() {
	switch colorMode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !(outputIsStderr && stderrIsTerminal())
	}
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// CompileError is a structural failure from the scanner or parser. The
// pipeline stops at the first one.
type CompileError struct {
	Tok token.Token
	Msg string
}

func NewError(tok token.Token, format string, args ...interface{}) *CompileError {
	return &CompileError{Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf(":%d:%d: %s", e.Tok.Line, e.Tok.StartColumn(), e.Msg)
}

// findFileAndLine converts a token to a file-specific location
func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "", tok.Line, tok.StartColumn()
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.StartColumn()
}

// printErrorLine prints the source line and a caret under columns [col, col+length)
func printErrorLine(w io.Writer, fileIndex, lineNum, col, length int) {
	if fileIndex < 0 || fileIndex >= len(sourceFiles) || lineNum <= 0 || col <= 0 {
		return
	}

	content := sourceFiles[fileIndex].Content
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	line := string(content[lineStart:lineEnd])
	fmt.Fprintf(w, "  %s\n", strings.TrimRight(line, "\r"))

	// Tabs are echoed so the caret lines up with the source line.
	var pad strings.Builder
	for i, r := range content[lineStart:lineEnd] {
		if i >= col-1 {
			break
		}
		if r == '\t' {
			pad.WriteRune('\t')
		} else {
			pad.WriteRune(' ')
		}
	}
	marker := "^"
	if length > 1 {
		marker += strings.Repeat("~", length-1)
	}
	fmt.Fprintf(w, "  %s%s\n", pad.String(), caretColor.Sprint(marker))
}

func report(label *color.Color, kind string, tok token.Token, line, col int, msg, suffix string) {
	filename, _, _ := findFileAndLine(tok)
	fmt.Fprintf(output, "%s:%d:%d: %s %s%s\n", filename, line, col, label.Sprint(kind+":"), msg, suffix)
	printErrorLine(output, tok.FileIndex, line, col, tok.Len)
}

// PrintError prints err. A *CompileError gets a location and the offending
// source line, anything else a plain prefix.
func PrintError(err error) {
	if ce, ok := err.(*CompileError); ok {
		report(errorLabel, "error", ce.Tok, ce.Tok.Line, ce.Tok.StartColumn(), ce.Msg, "")
		return
	}
	fmt.Fprintf(output, "winzigc: %s %v\n", errorLabel.Sprint("error:"), err)
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...interface{}) {
	if tok.Line == 0 {
		fmt.Fprintf(output, "winzigc: %s ", errorLabel.Sprint("error:"))
		fmt.Fprintf(output, format, args...)
		fmt.Fprintln(output)
		os.Exit(2)
	}
	PrintError(NewError(tok, format, args...))
	os.Exit(1)
}

// Diagnostic prints a collected semantic error at line:col, underlining tok.
func Diagnostic(tok token.Token, line, col int, msg string) {
	report(errorLabel, "error", tok, line, col, msg, "")
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	suffix := fmt.Sprintf(" [-W%s]", cfg.Warnings[wt].Name)
	report(warnLabel, "warning", tok, tok.Line, tok.StartColumn(), msg, suffix)
}
