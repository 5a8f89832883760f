package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/identity/internal/db"
	"github.com/Skotchmaster/identity/internal/hash"
	"github.com/Skotchmaster/identity/internal/repo"
)

func TestAuthService_Postgres(t *testing.T) {
	dsn := os.Getenv("IDENTITY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("IDENTITY_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gdb, err := db.Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	clock := newFakeClock()
	svc := NewAuthService(r, r, hash.New(bcrypt.MinCost), WithClock(clock.Now))

	email := uuid.NewString() + "@it.example"
	_, err = svc.SignUp(ctx, "Integration", email, "pw1")
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "Integration", email, "pw1")
	assert.ErrorIs(t, err, ErrEmailTaken)

	tok, err := svc.Login(ctx, email, "pw1")
	require.NoError(t, err)

	_, ok, err := svc.ValidateToken(ctx, tok.Value)
	require.NoError(t, err)
	assert.True(t, ok)

	revoked, err := svc.Logout(ctx, tok.Value)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, ok, err = svc.ValidateToken(ctx, tok.Value)
	require.NoError(t, err)
	assert.False(t, ok)
}
