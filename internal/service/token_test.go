package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager("test-secret-test-secret-test-secret", time.Minute)
	userID := uuid.New()

	token, exp, err := m.IssueAccess(userID, "student")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	gotID, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "student", role)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-one-secret-one-secret-one", time.Minute).IssueAccess(uuid.New(), "")
	require.NoError(t, err)

	_, _, err = NewTokenManager("secret-two-secret-two-secret-two", time.Minute).ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret-test-secret-test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, _, err := m.IssueAccess(uuid.New(), "")
	require.NoError(t, err)

	m.now = time.Now
	_, _, err = m.ParseAccess(token)
	assert.Error(t, err)
}
