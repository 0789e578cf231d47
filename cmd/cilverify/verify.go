package main

import (
	"fmt"
	"os"

	"github.com/chazu/cilverify/pkg/config"
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/interp"
	"github.com/chazu/cilverify/pkg/methodsrc"
)

// verifyFiles runs the core verifier over each CBOR envelope file in
// paths using universe for token resolution, printing diagnostics as it
// goes. It returns false if any file failed verification.
func verifyFiles(paths []string, universePath string, policy *config.Policy, verbose bool) (bool, error) {
	ts, resolver, err := loadUniverse(universePath)
	if err != nil {
		return false, err
	}

	allPassed := true
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", path, err)
		}

		env, err := methodsrc.UnmarshalEnvelope(data)
		if err != nil {
			return false, fmt.Errorf("decoding envelope %s: %w", path, err)
		}

		body, err := methodsrc.ToBody(env, resolver)
		if err != nil {
			return false, fmt.Errorf("resolving tokens in %s: %w", path, err)
		}

		reporter := diag.NewReporter(policy.ReporterPolicy())
		interp.Verify(ts, resolver, body, reporter)

		if reporter.Failed() {
			allPassed = false
			fmt.Printf("FAIL %s\n", path)
			for _, e := range reporter.Errors() {
				fmt.Printf("  %s\n", e.Error())
			}
		} else if verbose {
			fmt.Printf("PASS %s\n", path)
		}
	}

	return allPassed, nil
}
