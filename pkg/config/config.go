// Package config handles cilverify.toml policy configuration: reporter
// mode, opcode deny and conservative-reject lists, and service endpoints.
// Of these, only the reporter mode and the service listen address are
// consumed elsewhere in this module. Load/FindAndLoad
// mirror the upward-search discovery pattern common to tool configs like
// go.mod or .git.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/cilverify/pkg/diag"
)

// Policy is the parsed cilverify.toml configuration.
type Policy struct {
	Reporter Reporter          `toml:"reporter"`
	Opcodes  OpcodePolicy      `toml:"opcodes"`
	Service  ServiceEndpoints  `toml:"service"`
	Ledger   LedgerConfig      `toml:"ledger"`

	// Dir is the directory containing cilverify.toml (set at load time).
	Dir string `toml:"-"`
}

// Reporter selects the verifier's error-reporting mode.
type Reporter struct {
	Mode string `toml:"mode"` // "fail-fast" (default) or "collect-all"
}

// OpcodePolicy lists mnemonic overrides for host-specific opcode
// restrictions. The lists are parsed and exposed through IsDenied and
// IsConservativeReject; the verifier's dispatch does not consult them.
type OpcodePolicy struct {
	Deny               []string `toml:"deny"`
	ConservativeReject []string `toml:"conservative-reject"`
}

// ServiceEndpoints holds the oracle and bytecode-source addresses and the
// verifysvc listen address. Only ListenAddr is used (by the CLI's -serve
// mode); OracleAddr and MethodSrcAddr are parsed but not connected to.
type ServiceEndpoints struct {
	OracleAddr    string `toml:"oracle-addr"`
	MethodSrcAddr string `toml:"methodsrc-addr"`
	ListenAddr    string `toml:"listen-addr"`
}

// LedgerConfig configures the optional DuckDB result ledger used by the
// diagnostic collect-all tool mode.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load parses a cilverify.toml file from the given directory.
func Load(dir string) (*Policy, error) {
	path := filepath.Join(dir, "cilverify.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var p Policy
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	p.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	p.applyDefaults()

	if err := ValidateAgainstSchema(data); err != nil {
		return nil, fmt.Errorf("cilverify.toml failed schema validation: %w", err)
	}

	return &p, nil
}

// FindAndLoad walks up from startDir to find a cilverify.toml file, then
// loads and returns the policy. Returns nil if no config file is found.
func FindAndLoad(startDir string) (*Policy, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "cilverify.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (p *Policy) applyDefaults() {
	if p.Reporter.Mode == "" {
		p.Reporter.Mode = "fail-fast"
	}
	if p.Service.ListenAddr == "" {
		p.Service.ListenAddr = ":9443"
	}
	if p.Ledger.Path == "" {
		p.Ledger.Path = filepath.Join(p.Dir, "cilverify-ledger.duckdb")
	}
}

// ReporterPolicy translates the configured reporter mode into a
// diag.Policy value.
func (p *Policy) ReporterPolicy() diag.Policy {
	if p.Reporter.Mode == "collect-all" {
		return diag.CollectAll
	}
	return diag.FailFast
}

// IsDenied reports whether a mnemonic appears in the policy's deny list.
func (p *Policy) IsDenied(mnemonic string) bool {
	for _, d := range p.Opcodes.Deny {
		if d == mnemonic {
			return true
		}
	}
	return false
}

// IsConservativeReject reports whether a mnemonic is configured to be
// rejected outright rather than reasoned about: when in doubt, reject
// rather than guess.
func (p *Policy) IsConservativeReject(mnemonic string) bool {
	for _, m := range p.Opcodes.ConservativeReject {
		if m == mnemonic {
			return true
		}
	}
	return false
}
