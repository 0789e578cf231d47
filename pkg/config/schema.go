package config

import (
	"bytes"
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/toml"
)

// policySchema constrains cilverify.toml's shape beyond what a plain TOML
// unmarshal enforces: reporter.mode is a closed enum, and the oracle/
// bytecode/listen service addresses, when present, must be strings (their
// content is not checked).
const policySchema = `
reporter?: {
	mode?: "fail-fast" | "collect-all"
}
opcodes?: {
	deny?: [...string]
	"conservative-reject"?: [...string]
}
service?: {
	"oracle-addr"?: string
	"methodsrc-addr"?: string
	"listen-addr"?: string
}
ledger?: {
	enabled?: bool
	path?: string
}
`

// ValidateAgainstSchema unifies raw cilverify.toml bytes against
// policySchema, catching malformed policy files before verification
// starts (the role this repository gives cuelang.org/go; see DESIGN.md).
func ValidateAgainstSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(policySchema)
	if schema.Err() != nil {
		return fmt.Errorf("config: internal schema error: %w", schema.Err())
	}

	expr, err := toml.NewDecoder("cilverify.toml", bytes.NewReader(data)).Decode()
	if err != nil {
		return fmt.Errorf("config: decode toml for schema check: %w", err)
	}
	value := ctx.BuildExpr(expr)
	if value.Err() != nil {
		return fmt.Errorf("config: build toml value: %w", value.Err())
	}

	unified := schema.Unify(value)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("config: schema validation: %w", err)
	}
	return nil
}
