package database

import (
	"testing"

	modelspkg "github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesEngagementTables(t *testing.T) {
	var hasReaction, hasFollow, hasOTP bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Reaction:
			hasReaction = true
		case *modelspkg.Follow:
			hasFollow = true
		case *modelspkg.OTP:
			hasOTP = true
		}
	}
	require.True(t, hasReaction, "PersistentModels should include Reaction")
	require.True(t, hasFollow, "PersistentModels should include Follow")
	require.True(t, hasOTP, "PersistentModels should include OTP")
}

func TestPersistentModels_UserFirst(t *testing.T) {
	models := PersistentModels()
	require.NotEmpty(t, models)
	_, ok := models[0].(*modelspkg.User)
	assert.True(t, ok, "users must migrate before tables that reference them")
}
