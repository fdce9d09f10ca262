// Package zkmock provides a development prover that emits groth16-shaped
// proof objects without doing any cryptography. It stands in for the native
// proving capability in tests and demos.
package zkmock

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.echoid.dev/verify/domain"
)

// DefaultCircuitID is used when a requested credential names no circuit.
const DefaultCircuitID = "credentialAtomicQuerySigV2"

// Prover implements the holder ProofGenerator with fabricated proofs.
type Prover struct{}

// proofObject mirrors the groth16 proof layout of the reference proof
// system; verifiers downstream only ever treat it as opaque JSON.
type proofObject struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
}

// Generate implements holder.ProofGenerator. One proof is produced per
// requested credential so the response scope lines up with the request scope.
func (Prover) Generate(_ context.Context, request *domain.VerificationRequest) ([]domain.GeneratedProof, error) {
	count := len(request.RequestedCredentials)
	if count == 0 {
		count = 1
	}

	proofs := make([]domain.GeneratedProof, 0, count)
	for i := 0; i < count; i++ {
		circuitID := DefaultCircuitID
		if i < len(request.RequestedCredentials) && request.RequestedCredentials[i].CircuitID != "" {
			circuitID = request.RequestedCredentials[i].CircuitID
		}

		raw, err := json.Marshal(proofObject{
			PiA:      []string{element(), element(), "1"},
			PiB:      [][]string{{element(), element()}, {element(), element()}, {"1", "0"}},
			PiC:      []string{element(), element(), "1"},
			Protocol: "groth16",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode mock proof: %w", err)
		}

		proofs = append(proofs, domain.GeneratedProof{
			CircuitID:     circuitID,
			Proof:         raw,
			PublicSignals: signals(),
		})
	}

	return proofs, nil
}

// element fabricates a field-element-looking decimal string.
func element() string {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 248))
	if err != nil {
		// crypto/rand failing is not worth surfacing for fabricated data.
		n = big.NewInt(time.Now().UnixNano())
	}
	return n.String()
}

// signals fabricates a 20-entry public signal vector shaped like the
// reference circuit output: timestamp, state markers and zero padding.
func signals() []string {
	out := []string{
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		"1",
		element(),
		"0",
		element(),
		"1",
		element(),
		strconv.FormatInt(time.Now().Unix(), 10),
		element(),
		"0",
		"0",
		"2",
		"1",
		"99",
	}
	for len(out) < 20 {
		out = append(out, "0")
	}
	return out
}
