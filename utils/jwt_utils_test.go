package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmsociety/api/models"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	member := &models.Member{ID: 42, Email: "ada@example.org", Tier: "patron"}

	token, err := m.Generate(member)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.MemberID)
	assert.Equal(t, "ada@example.org", claims.Email)
	assert.Equal(t, "patron", claims.Tier)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTManager_RejectsOtherSecret(t *testing.T) {
	token, err := NewJWTManager("one", time.Hour).Generate(&models.Member{ID: 1})
	require.NoError(t, err)

	_, err = NewJWTManager("two", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.Generate(&models.Member{ID: 1})
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestJWTManager_NoSecret(t *testing.T) {
	_, err := NewJWTManager("", time.Hour).Generate(&models.Member{ID: 1})
	assert.Error(t, err)
}
