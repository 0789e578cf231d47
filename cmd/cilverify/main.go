// cilverify is the CLI entry point for the CIL bytecode verifier: batch
// verification of standalone method-body envelopes, or serving the
// Connect/gRPC verification service for callers that stream bodies
// live.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/cilverify/pkg/config"
	"github.com/chazu/cilverify/server/verifysvc"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	serveMode := flag.Bool("serve", false, "Start the verification service (Connect/gRPC + HTTP/JSON)")
	port := flag.Int("port", 0, "Listen port override (used with --serve; defaults to cilverify.toml's service.listen-addr)")
	universePath := flag.String("universe", "", "Path to a JSON type-universe file describing the classes/methods/fields referenced by the method bodies being verified")
	configDir := flag.String("config", ".", "Directory to search (upward) for cilverify.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cilverify [options] [envelope-files...]\n\n")
		fmt.Fprintf(os.Stderr, "Verifies CIL method-body envelopes against ECMA-335 structural and type rules.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cilverify -universe types.json body1.cbor body2.cbor   # Batch verify\n")
		fmt.Fprintf(os.Stderr, "  cilverify -universe types.json -serve                  # Serve Connect/gRPC\n")
		fmt.Fprintf(os.Stderr, "  cilverify -universe types.json -serve -port 9000        # Serve on :9000\n")
	}
	flag.Parse()

	policy, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cilverify.toml: %v\n", err)
		os.Exit(1)
	}
	if policy == nil {
		policy = &config.Policy{Dir: *configDir}
		policy.Service.ListenAddr = ":9443"
	}

	if *universePath == "" {
		fmt.Fprintf(os.Stderr, "Error: -universe is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if *serveMode {
		ts, resolver, err := loadUniverse(*universePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var ledger *verifysvc.Ledger
		if policy.Ledger.Enabled {
			ledger, err = verifysvc.OpenLedger(policy.Ledger.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
				os.Exit(1)
			}
			defer ledger.Close()
		}

		svc := verifysvc.NewService(ts, resolver, policy, ledger)

		addr := policy.Service.ListenAddr
		if *port != 0 {
			addr = fmt.Sprintf(":%d", *port)
		}
		if *verbose {
			fmt.Printf("Reporter mode: %s\n", policy.Reporter.Mode)
		}
		if err := verifysvc.ListenAndServe(addr, svc); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no envelope files given\n")
		flag.Usage()
		os.Exit(1)
	}

	passed, err := verifyFiles(paths, *universePath, policy, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !passed {
		os.Exit(1)
	}
}
