// Package config declares the environment-derived settings internal/runcmd
// reads before constructing a VM, grounded on the teacher's indirect
// dependency on github.com/caarlos0/env/v6 (pulled in for mainer-based
// commands to pick up environment-derived settings) even though
// internal/maincmd itself never declares a Config struct of its own.
package config

import (
	"github.com/caarlos0/env/v6"
)

// Config holds the runtime knobs spec.md §4.2/§6/§5 leaves to the embedder:
// the module search path, execution limits, and a debug disassembly switch.
type Config struct {
	// HanaPath is the colon-separated module search path USE consults for a
	// bare (non-relative, non-absolute) import path, per spec.md §4.2/§6.
	HanaPath []string `env:"HANA_PATH" envSeparator:":"`

	// MaxSteps caps the number of dispatch-loop iterations a single Run may
	// take before aborting with a corrupt-opcode-class error, guarding
	// against runaway scripts in an embedding context; 0 means unlimited.
	MaxSteps uint64 `env:"HANA_MAX_STEPS" envDefault:"0"`

	// MaxCallDepth overrides vm.DefaultMaxCallStackDepth when non-zero.
	MaxCallDepth int `env:"HANA_MAX_CALL_DEPTH" envDefault:"0"`

	// DebugDisasm, when true, makes the run command print the compiled
	// program's disassembly (lang/compiler/asm.go's Dasm) to stderr before
	// executing it.
	DebugDisasm bool `env:"HANA_DEBUG_DISASM" envDefault:"false"`
}

// Load parses Config from the process environment. HanaPath's envSeparator
// tag keeps it colon-separated (the conventional PATH-like form spec.md §6
// specifies) independent of whatever separator other list-valued settings in
// a larger embedding might use.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
