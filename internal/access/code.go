package access

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"nguide/admin/internal/utils"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// MaxAllocationAttempts bounds AllocateUniqueCode.
const MaxAllocationAttempts = utils.MaxAllocationAttempts

// CodeGenerator produces one candidate access code.
type CodeGenerator func() (string, error)

// CodeExistsFunc reports whether a code is assigned to any quotation.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// GenerateAccessCode returns a 6-digit code uniform over [100000, 999999].
func GenerateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("failed to read random access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// AllocateUniqueCode draws codes from generate until exists reports one free,
// trying at most MaxAllocationAttempts codes.
func AllocateUniqueCode(ctx context.Context, generate CodeGenerator, exists CodeExistsFunc) (string, error) {
	if generate == nil {
		generate = GenerateAccessCode
	}
	return utils.AllocateUnique(ctx, MaxAllocationAttempts,
		func(int) (string, error) { return generate() },
		utils.ExistsFunc(exists),
	)
}
