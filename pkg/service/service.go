// Copyright 2025 Certen Protocol
//
// Package service orchestrates a single processClaim call end to end:
// C3 (validate) -> C8 (parse claim, folded into C4) -> C4 (execute) ->
// C5 (ABI-encode & hash) -> C6 (sign), assembling ProcessedClaimData
// (spec.md §2's control-flow summary). Grounded on the attestation
// service's shape (pkg/attestation/service.go): a struct holding its
// signing dependency and a bracketed-prefix stdlib logger, with one
// exported entry point per unit of work.
package service

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/certen/claim-processor/pkg/abiencode"
	"github.com/certen/claim-processor/pkg/claimtypes"
	"github.com/certen/claim-processor/pkg/executor"
	"github.com/certen/claim-processor/pkg/signer"
	"github.com/certen/claim-processor/pkg/validator"
)

// ProcessedClaimData is the Signer Envelope's output (spec.md §4.6).
type ProcessedClaimData struct {
	ProcessorProviderHash string                  `json:"processorProviderHash"`
	Signature             string                  `json:"signature"`
	Outputs               []claimtypes.OutputSpec `json:"outputs"`
	Values                []string                `json:"values"`
}

// Service runs the complete claim-processing pipeline against one
// configured signing key and set of resource limits.
type Service struct {
	signer *signer.Signer
	limits executor.Limits
	logger *log.Logger
}

// New creates a Service bound to s for signing, with limits governing
// the executor's resource guards (I5).
func New(s *signer.Signer, limits executor.Limits) *Service {
	return &Service{
		signer: s,
		limits: limits,
		logger: log.New(os.Stderr, "[claimprocessor] ", log.LstdFlags),
	}
}

// ProcessClaim runs the full pipeline (spec.md §2): validate the
// processor, extract claim.context.providerHash, execute the
// processor against the claim, ABI-encode and hash the identity and
// output tuple, and sign the resulting message hash.
func (s *Service) ProcessClaim(processor *claimtypes.Processor, claim *claimtypes.Claim) (*ProcessedClaimData, error) {
	result := validator.Validate(processor)
	if !result.Valid {
		s.logger.Printf("processor failed validation: %d error(s)", len(result.Errors))
		return nil, fmt.Errorf("service: processor invalid: %v", result.Errors)
	}

	providerHash, ok := executor.ProviderHash(claim)
	if !ok {
		return nil, fmt.Errorf("service: %w", executor.ErrMissingProviderHash)
	}

	values, err := executor.Execute(processor, claim, s.limits)
	if err != nil {
		s.logger.Printf("execution failed: %s", err)
		return nil, fmt.Errorf("service: execution failed: %w", err)
	}

	processorProviderHash, err := abiencode.ProcessorProviderHash(providerHash, processor.RawJSON())
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	outputTypes := make([]string, len(processor.Outputs))
	for i, o := range processor.Outputs {
		outputTypes[i] = o.Type
	}

	_, messageHash, err := abiencode.Encode(processorProviderHash, outputTypes, values)
	if err != nil {
		s.logger.Printf("abi encoding failed: %s", err)
		return nil, fmt.Errorf("service: %w", err)
	}

	sig, err := s.signer.Sign(messageHash)
	if err != nil {
		s.logger.Printf("signing failed: %s", err)
		return nil, fmt.Errorf("service: %w", err)
	}

	return &ProcessedClaimData{
		ProcessorProviderHash: "0x" + hex.EncodeToString(processorProviderHash[:]),
		Signature:             "0x" + hex.EncodeToString(sig),
		Outputs:               processor.Outputs,
		Values:                values,
	}, nil
}
