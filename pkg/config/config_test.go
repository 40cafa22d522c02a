package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/winzigc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "auto", cfg.Color)
	assert.True(t, cfg.IsFeatureEnabled(FeatNestedComments))
	assert.True(t, cfg.IsFeatureEnabled(FeatOrdinalFuncs))
	assert.True(t, cfg.IsFeatureEnabled(FeatEofLiteral))
	assert.True(t, cfg.IsWarningEnabled(WarnProgramName))
	assert.True(t, cfg.IsWarningEnabled(WarnOverflow))
	assert.False(t, cfg.IsWarningEnabled(WarnCaseRange))
	assert.False(t, cfg.IsWarningEnabled(WarnShadow))

	for wt := Warning(0); wt < WarnCount; wt++ {
		name := cfg.Warnings[wt].Name
		require.NotEmpty(t, name)
		assert.Equal(t, wt, cfg.WarningMap[name])
	}
	for ft := Feature(0); ft < FeatCount; ft++ {
		name := cfg.Features[ft].Name
		require.NotEmpty(t, name)
		assert.Equal(t, ft, cfg.FeatureMap[name])
	}
}

func TestProcessFlagString(t *testing.T) {
	tests := []struct {
		flags  string
		shadow bool
		over   bool
		eof    bool
	}{
		{"", false, true, true},
		{"-Wshadow -Fno-eof-literal", true, true, false},
		{"-Wno-all", false, false, true},
		{"-Wall", true, true, true},
		// -Wall is applied first, whatever the order on the command line.
		{"-Wno-shadow -Wall", false, true, true},
		{"-Wno-all -Woverflow", false, true, true},
		{"-Wunknown -Fmystery", false, true, true},
	}
	for _, tt := range tests {
		cfg := NewConfig()
		cfg.ProcessFlagString(tt.flags)
		assert.Equal(t, tt.shadow, cfg.IsWarningEnabled(WarnShadow), "%q shadow", tt.flags)
		assert.Equal(t, tt.over, cfg.IsWarningEnabled(WarnOverflow), "%q overflow", tt.flags)
		assert.Equal(t, tt.eof, cfg.IsFeatureEnabled(FeatEofLiteral), "%q eof-literal", tt.flags)
	}
}

func TestSetupFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("t")
	cfg.SetupFlagGroups(fs)

	for _, name := range []string{"Wshadow", "Wno-shadow", "Fordinal-funcs", "Fno-ordinal-funcs", "Wall", "Wno-all"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}

	require.NoError(t, fs.Parse([]string{"-Wall", "-Fno-ordinal-funcs", "-Wno-overflow", "x.wz"}))
	cfg.ProcessFlags(func(fn func(name string)) {
		fs.Visit(func(f *cli.Flag) { fn(f.Name) })
	})
	assert.True(t, cfg.IsWarningEnabled(WarnShadow))
	assert.False(t, cfg.IsWarningEnabled(WarnOverflow))
	assert.False(t, cfg.IsFeatureEnabled(FeatOrdinalFuncs))
	assert.Equal(t, []string{"x.wz"}, fs.Args())
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `Color = "never"

[Warnings]
shadow = true
overflow = false

[Features]
eof-literal = false
`)
	cfg := NewConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "never", cfg.Color)
	assert.True(t, cfg.IsWarningEnabled(WarnShadow))
	assert.False(t, cfg.IsWarningEnabled(WarnOverflow))
	assert.False(t, cfg.IsFeatureEnabled(FeatEofLiteral))
	assert.True(t, cfg.IsFeatureEnabled(FeatOrdinalFuncs))
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown warning", "[Warnings]\nnope = true\n", "unknown warning 'nope'"},
		{"unknown feature", "[Features]\nnope = true\n", "unknown feature 'nope'"},
		{"bad color", "Color = \"sometimes\"\n", "invalid Color 'sometimes'"},
		{"unknown key", "Colour = \"never\"\n", "field 'Colour' is not defined"},
		{"syntax", "Color = \n", DefaultFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig().LoadFile(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	err := NewConfig().LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
