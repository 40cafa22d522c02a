package config

import (
	"strings"

	"github.com/xplshn/winzigc/pkg/cli"
)

type Feature int

const (
	FeatNestedComments Feature = iota
	FeatOrdinalFuncs
	FeatEofLiteral
	FeatCount
)

type Warning int

const (
	WarnProgramName Warning = iota
	WarnOverflow
	WarnCaseRange
	WarnShadow
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Color      string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Color:      "auto",
	}

	features := map[Feature]Info{
		FeatNestedComments: {"nested-comments", true, "Count nested '{' '}' pairs inside block comments."},
		FeatOrdinalFuncs:   {"ordinal-funcs", true, "Allow the 'chr' and 'ord' prefix conversions."},
		FeatEofLiteral:     {"eof-literal", true, "Accept 'eof' as a boolean literal in expressions."},
	}

	warnings := map[Warning]Info{
		WarnProgramName: {"program-name", true, "Warn when the name after the final 'end' differs from the program name."},
		WarnOverflow:    {"overflow", true, "Warn when an integer literal does not fit in 32 bits."},
		WarnCaseRange:   {"case-range", false, "Warn on case ranges whose bounds are not literals."},
		WarnShadow:      {"shadow", false, "Warn when a local variable or parameter hides a global."},
		WarnExtra:       {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name> on
// fs, plus -Wall and -Wno-all. ProcessFlags applies whatever was set.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
			Default:  info.Enabled,
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", featureFlags)

	var all, noAll bool
	fs.Bool(&all, "Wall", "", false, "Enable all warnings")
	fs.Bool(&noAll, "Wno-all", "", false, "Disable all warnings")
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -Wall/-Wno-all before any specific flag so that
// "-Wall -Wno-shadow" means what it says regardless of order.
func (c *Config) ProcessFlags(visitFlag func(fn func(name string))) {
	visitFlag(func(name string) {
		if name == "Wall" || name == "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
	visitFlag(func(name string) {
		if name != "Wall" && name != "Wno-all" {
			c.applyFlag("-" + name)
		}
	})
}

// ProcessFlagString applies a whitespace-separated list such as "-Wall -Fno-eof-literal".
func (c *Config) ProcessFlagString(flagStr string) {
	fields := strings.Fields(flagStr)
	c.ProcessFlags(func(fn func(name string)) {
		for _, f := range fields {
			fn(strings.TrimPrefix(f, "-"))
		}
	})
}
