package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    const secret = "test-secret"
    at, err := NewAccessToken(secret, 42, "USER", 15)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 2*time.Second)

    tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    })
    require.NoError(t, err)
    require.True(t, tok.Valid)

    claims, ok := tok.Claims.(jwt.MapClaims)
    require.True(t, ok)
    assert.Equal(t, float64(42), claims["sub"])
    assert.Equal(t, "USER", claims["role"])
}

func TestAccessToken_WrongSecretRejected(t *testing.T) {
    at, err := NewAccessToken("right-secret", 42, "USER", 15)
    require.NoError(t, err)

    _, err = jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
        return []byte("wrong-secret"), nil
    })
    assert.Error(t, err)
}

func TestRefreshTokenHashing(t *testing.T) {
    rt, err := NewRefreshToken(30)
    require.NoError(t, err)
    assert.Len(t, rt.Raw, 96)

    // The stored hash is stable and never equals the raw token.
    h1 := HashRefreshRaw(rt.Raw)
    h2 := HashRefreshRaw(rt.Raw)
    assert.Equal(t, h1, h2)
    assert.NotEqual(t, rt.Raw, h1)
    assert.Len(t, h1, 64)

    other, err := NewRefreshToken(30)
    require.NoError(t, err)
    assert.NotEqual(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(other.Raw))
}

func TestPasswordHashing(t *testing.T) {
    hash, err := HashPassword("hunter22", 4)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "hunter22"))
    assert.False(t, VerifyPassword(hash, "hunter23"))
}
