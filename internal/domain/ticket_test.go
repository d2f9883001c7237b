package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	t.Run("Should accept known statuses case-insensitively", func(t *testing.T) {
		for input, want := range map[string]Status{
			"OPEN":         StatusOpen,
			"open":         StatusOpen,
			" in_progress": StatusInProgress,
			"Resolved":     StatusResolved,
			"CLOSED ":      StatusClosed,
		} {
			got, err := ParseStatus(input)
			require.NoError(t, err, input)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Should reject unknown literals", func(t *testing.T) {
		_, err := ParseStatus("BOGUS")
		require.Error(t, err)
	})

	t.Run("Should reject empty input", func(t *testing.T) {
		_, err := ParseStatus("")
		require.Error(t, err)
	})
}

func TestParsePriority(t *testing.T) {
	t.Run("Should default empty input to MEDIUM", func(t *testing.T) {
		got, err := ParsePriority("")
		require.NoError(t, err)
		assert.Equal(t, PriorityMedium, got)
	})

	t.Run("Should parse known priorities", func(t *testing.T) {
		got, err := ParsePriority("urgent")
		require.NoError(t, err)
		assert.Equal(t, PriorityUrgent, got)
	})

	t.Run("Should reject unknown priorities", func(t *testing.T) {
		_, err := ParsePriority("CRITICAL")
		require.Error(t, err)
	})
}

func TestParseCategory(t *testing.T) {
	t.Run("Should default empty input to OTHER", func(t *testing.T) {
		got, err := ParseCategory(" ")
		require.NoError(t, err)
		assert.Equal(t, CategoryOther, got)
	})

	t.Run("Should parse known categories", func(t *testing.T) {
		got, err := ParseCategory("network")
		require.NoError(t, err)
		assert.Equal(t, CategoryNetwork, got)
	})

	t.Run("Should reject unknown categories", func(t *testing.T) {
		_, err := ParseCategory("FACILITIES")
		require.Error(t, err)
	})
}

func TestActiveStatus(t *testing.T) {
	assert.True(t, ActiveStatus(StatusOpen))
	assert.True(t, ActiveStatus(StatusInProgress))
	assert.False(t, ActiveStatus(StatusResolved))
	assert.False(t, ActiveStatus(StatusClosed))
}

func TestUserHasRole(t *testing.T) {
	user := &User{Roles: []Role{RoleUser, RoleAgent}}
	assert.True(t, user.HasRole(RoleAgent))
	assert.False(t, user.HasRole(RoleAdmin))
}
