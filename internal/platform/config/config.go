// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from its env struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Var describes one environment variable a config struct reads.
type Var struct {
	Name    string
	Default string
}

// Vars lists the environment variables target reads, in field order.
func Vars(target any) ([]Var, error) {
	params, err := env.GetFieldParams(target)
	if err != nil {
		return nil, fmt.Errorf("inspect env: %w", err)
	}
	vars := make([]Var, 0, len(params))
	for _, p := range params {
		if p.Key == "" {
			continue
		}
		vars = append(vars, Var{Name: p.Key, Default: p.DefaultValue})
	}
	return vars, nil
}

// WriteVars prints the variables target reads as an aligned table.
func WriteVars(w io.Writer, target any) error {
	vars, err := Vars(target)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, v := range vars {
		def := v.Default
		if def == "" {
			def = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", v.Name, def)
	}
	return tw.Flush()
}

// Exitf reports a startup failure on stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
