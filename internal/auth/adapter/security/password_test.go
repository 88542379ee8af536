package security_test

import (
	"testing"

	"mission-control/internal/auth/adapter/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := security.NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("ground-loop-42")
	require.NoError(t, err)
	assert.NotEqual(t, "ground-loop-42", hash)

	assert.NoError(t, h.Compare(hash, "ground-loop-42"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), security.ErrPasswordMismatch)
	assert.ErrorIs(t, h.Compare("", "ground-loop-42"), security.ErrPasswordMismatch)
	assert.ErrorIs(t, h.Compare("not-a-hash", "ground-loop-42"), security.ErrPasswordMismatch)
}

func TestBcryptHasher_ClampsCost(t *testing.T) {
	hash, err := security.NewBcryptHasher(99).Hash("x")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
