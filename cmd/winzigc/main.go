package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/winzigc/pkg/cli"
	"github.com/xplshn/winzigc/pkg/config"
	"github.com/xplshn/winzigc/pkg/dump"
	"github.com/xplshn/winzigc/pkg/lexer"
	"github.com/xplshn/winzigc/pkg/parser"
	"github.com/xplshn/winzigc/pkg/typeChecker"
	"github.com/xplshn/winzigc/pkg/util"
)

// Exit statuses.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// usageError marks failures that are the caller's fault rather than the
// program's: bad flags, a bad config file, no inputs.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configFile  string
	colorMode   string
	dumpTokens  bool
	dumpAST     bool
	dumpSymbols bool
	plain       bool
	verbose     bool
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp("winzigc")
	app.Synopsis = "[options] <input.wz> ..."
	app.Description = "A front end for the WinZig teaching language. It scans, parses and type checks, and reports every semantic error it can find before giving up."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/winzigc>"
	app.Since = 2025
	app.Stdout, app.Stderr = stdout, stderr
	if f, ok := stderr.(*os.File); !ok || f != os.Stderr {
		util.SetOutput(stderr)
		defer util.SetOutput(nil)
	}

	var opts options
	fs := app.FlagSet
	fs.String(&opts.configFile, "config", "c", "", "Read settings from <file> (default ./"+config.DefaultFile+" when present).", "file")
	fs.String(&opts.colorMode, "color", "", "", "Colour diagnostics: auto, always or never.", "mode")
	fs.Bool(&opts.dumpTokens, "dump-tokens", "t", false, "Print the token table of each input.")
	fs.Bool(&opts.dumpAST, "dump-ast", "a", false, "Print the type-annotated AST of each input.")
	fs.Bool(&opts.dumpSymbols, "dump-symbols", "s", false, "Print the global symbol table of each input.")
	fs.Bool(&opts.plain, "plain", "p", false, "Print diagnostics as bare ':line:col: message' lines on stdout.")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Report each compilation stage.")

	cfg := config.NewConfig()
	cfg.SetupFlagGroups(fs)

	status := exitOK
	app.Action = func(inputFiles []string) error {
		if err := configure(cfg, fs, &opts); err != nil {
			return usageError{err}
		}
		if len(inputFiles) == 0 {
			return usageError{errors.New("no input files specified.")}
		}

		d := &driver{cfg: cfg, opts: opts, stdout: stdout}
		for _, path := range inputFiles {
			if !d.compile(path) {
				status = exitFailed
			}
		}
		if opts.verbose {
			fmt.Fprintf(stdout, "Checked %d file(s), %d diagnostic(s).\n", len(inputFiles), d.diagnostics)
		}
		return nil
	}

	if err := app.Run(args); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			util.PrintError(ue.err)
		}
		return exitUsage
	}
	return status
}

// configure layers defaults, then the config file, then command-line flags.
func configure(cfg *config.Config, fs *cli.FlagSet, opts *options) error {
	file := opts.configFile
	if file == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			file = config.DefaultFile
		}
	}
	if file != "" {
		if err := cfg.LoadFile(file); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	cfg.ProcessFlags(func(fn func(name string)) {
		fs.Visit(func(f *cli.Flag) {
			if strings.HasPrefix(f.Name, "W") || strings.HasPrefix(f.Name, "F") {
				fn(f.Name)
			}
		})
	})

	if opts.colorMode != "" {
		cfg.Color = opts.colorMode
	}
	return util.SetColor(cfg.Color)
}

type driver struct {
	cfg         *config.Config
	opts        options
	stdout      io.Writer
	records     []util.SourceFileRecord
	diagnostics int
}

func (d *driver) progress(format string, args ...interface{}) {
	if d.opts.verbose {
		fmt.Fprintf(d.stdout, format+"\n", args...)
	}
}

// compile runs one file through the front end and reports whether it came
// out clean. Nothing past type checking runs for a file with errors.
func (d *driver) compile(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		util.PrintError(fmt.Errorf("could not read file '%s': %w", path, err))
		return false
	}
	index := len(d.records)
	rec := util.NewSourceFileRecord(path, []rune(string(content)))
	d.records = append(d.records, rec)
	util.SetSourceFiles(d.records)

	d.progress("Tokenizing '%s'...", path)
	toks, err := lexer.NewLexer(rec.Content, index, d.cfg).Tokens()
	if err != nil {
		d.structural(err)
		return false
	}
	if d.opts.dumpTokens {
		dump.Tokens(d.stdout, toks, rec)
	}

	d.progress("Parsing %d tokens into AST...", len(toks))
	prog, err := parser.NewParser(toks, d.cfg).Parse()
	if err != nil {
		d.structural(err)
		return false
	}

	d.progress("Type checking...")
	tc := typeChecker.NewTypeChecker(d.cfg)
	diags := tc.Check(prog)
	if d.opts.dumpAST {
		dump.AST(d.stdout, prog)
	}
	if d.opts.dumpSymbols {
		dump.Symbols(d.stdout, tc.Symbols())
	}

	for _, diag := range diags {
		if d.opts.plain {
			fmt.Fprintln(d.stdout, diag.String())
		} else {
			util.Diagnostic(diag.Tok, diag.Pos.Line, diag.Pos.Column, diag.Message)
		}
	}
	d.diagnostics += len(diags)
	if len(diags) > 0 {
		d.progress("%s: %d error(s)", path, len(diags))
		return false
	}
	return true
}

func (d *driver) structural(err error) {
	d.diagnostics++
	var ce *util.CompileError
	if d.opts.plain && errors.As(err, &ce) {
		fmt.Fprintln(d.stdout, ce.Error())
		return
	}
	util.PrintError(err)
}
