package holder

import (
	"context"

	"go.echoid.dev/verify/domain"
)

// ProofGenerator is the opaque zero-knowledge proof capability on the wallet
// side. Implementations receive the full verification request, including its
// proof scope, and return one generated proof per satisfied query.
type ProofGenerator interface {
	Generate(ctx context.Context, request *domain.VerificationRequest) ([]domain.GeneratedProof, error)
}
