package access

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceGenerator(start int, calls *int) CodeGenerator {
	return func() (string, error) {
		code := strconv.Itoa(start + *calls)
		*calls++
		return code, nil
	}
}

func TestGenerateAccessCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 10000; i++ {
		code, err := GenerateAccessCode()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestAllocateUniqueCode_ReturnsOnFourthAttempt(t *testing.T) {
	var calls int
	generate := sequenceGenerator(200000, &calls)

	var checked []string
	exists := func(ctx context.Context, code string) (bool, error) {
		checked = append(checked, code)
		return len(checked) <= 3, nil
	}

	code, err := AllocateUniqueCode(context.Background(), generate, exists)
	require.NoError(t, err)
	assert.Equal(t, "200003", code)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []string{"200000", "200001", "200002", "200003"}, checked)
}

func TestAllocateUniqueCode_ExhaustedAfterTenAttempts(t *testing.T) {
	var calls int
	generate := sequenceGenerator(300000, &calls)
	exists := func(ctx context.Context, code string) (bool, error) { return true, nil }

	code, err := AllocateUniqueCode(context.Background(), generate, exists)
	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.Empty(t, code)
	assert.Equal(t, 10, calls)
}

func TestAllocateUniqueCode_DefaultGenerator(t *testing.T) {
	seen := map[string]bool{}
	exists := func(ctx context.Context, code string) (bool, error) {
		seen[code] = true
		return false, nil
	}

	code, err := AllocateUniqueCode(context.Background(), nil, exists)
	require.NoError(t, err)
	assert.True(t, seen[code])
	assert.Len(t, code, 6, fmt.Sprintf("unexpected code %q", code))
}
