// Copyright 2025 Certen Protocol
//
// processclaim CLI: runs one processor document against one claim
// record and prints the resulting ProcessedClaimData as JSON. Intended
// for local development and CI fixtures, not as the production
// transport (spec.md §6 leaves HTTP/RPC transport to a collaborator).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/certen/claim-processor/pkg/claimtypes"
	"github.com/certen/claim-processor/pkg/config"
	"github.com/certen/claim-processor/pkg/executor"
	"github.com/certen/claim-processor/pkg/keymanager"
	"github.com/certen/claim-processor/pkg/service"
	"github.com/certen/claim-processor/pkg/signer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	processorPath := flag.String("processor", "", "path to the processor JSON document")
	claimPath := flag.String("claim", "", "path to the claim JSON document")
	flag.Parse()

	if *processorPath == "" || *claimPath == "" {
		flag.Usage()
		return fmt.Errorf("both -processor and -claim are required")
	}

	processorBytes, err := os.ReadFile(*processorPath)
	if err != nil {
		return fmt.Errorf("read processor: %w", err)
	}
	processor, err := claimtypes.ParseProcessor(processorBytes)
	if err != nil {
		return fmt.Errorf("parse processor: %w", err)
	}

	claimBytes, err := os.ReadFile(*claimPath)
	if err != nil {
		return fmt.Errorf("read claim: %w", err)
	}
	var claim claimtypes.Claim
	if err := json.Unmarshal(claimBytes, &claim); err != nil {
		return fmt.Errorf("parse claim: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	km := keymanager.NewKeyManager(cfg.AttestorKeyPath)
	if cfg.AttestorPrivateKeyHex != "" {
		if err := km.LoadHex(cfg.AttestorPrivateKeyHex); err != nil {
			return fmt.Errorf("load attestor key: %w", err)
		}
	} else if err := km.LoadOrGenerate(); err != nil {
		return fmt.Errorf("load attestor key: %w", err)
	}

	limits := executor.Limits{
		MaxExecutionTime:   cfg.MaxExecutionTime,
		MaxJSONPathResults: cfg.MaxJSONPathResults,
		MaxOutputValues:    cfg.MaxOutputValues,
		MaxStringLength:    cfg.MaxStringLength,
	}
	svc := service.New(signer.New(km.PrivateKey(), cfg.PersonalSignPrefix), limits)

	result, err := svc.ProcessClaim(processor, &claim)
	if err != nil {
		return fmt.Errorf("process claim: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
