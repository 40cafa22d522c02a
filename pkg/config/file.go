package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/naoina/toml"
)

// DefaultFile is picked up from the working directory when no --config is given.
const DefaultFile = "winzigc.toml"

// TOML keys use the same names as the Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// fileConfig is the on-disk shape:
//
//	Color = "never"
//	[Warnings]
//	shadow = true
//	[Features]
//	eof-literal = false
type fileConfig struct {
	Color    string          `toml:",omitempty"`
	Warnings map[string]bool `toml:",omitempty"`
	Features map[string]bool `toml:",omitempty"`
}

// LoadFile decodes a TOML config file and applies it on top of the current
// settings.
func (c *Config) LoadFile(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	var fc fileConfig
	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&fc)
	// Add file name to errors that have a line number.
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		return errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return c.apply(file, &fc)
}

func (c *Config) apply(file string, fc *fileConfig) error {
	switch fc.Color {
	case "":
	case "auto", "always", "never":
		c.Color = fc.Color
	default:
		return fmt.Errorf("%s: invalid Color '%s' (want auto, always or never)", file, fc.Color)
	}

	for _, name := range sortedKeys(fc.Warnings) {
		wt, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("%s: unknown warning '%s'", file, name)
		}
		c.SetWarning(wt, fc.Warnings[name])
	}
	for _, name := range sortedKeys(fc.Features) {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("%s: unknown feature '%s'", file, name)
		}
		c.SetFeature(ft, fc.Features[name])
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
