package repository

import (
	"context"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "Alice")

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
		wantID uint
	}{
		{"by username exact", func() (*models.User, error) { return repo.GetByUsername(ctx, "Alice") }, alice.ID},
		{"by username wrong case", func() (*models.User, error) { return repo.GetByUsername(ctx, "alice") }, 0},
		{"by username folded", func() (*models.User, error) { return repo.GetByUsernameFold(ctx, "aLiCe") }, alice.ID},
		{"by email", func() (*models.User, error) { return repo.GetByEmail(ctx, "Alice@example.com") }, alice.ID},
		{"missing email", func() (*models.User, error) { return repo.GetByEmail(ctx, "nobody@example.com") }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := tt.lookup()
			require.NoError(t, err)
			if tt.wantID == 0 {
				assert.Nil(t, user)
				return
			}
			require.NotNil(t, user)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))

	_, err := repo.GetByID(context.Background(), 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	testutil.CreateUser(t, db, "bob")

	err := repo.Create(context.Background(), &models.User{
		Username: "bob",
		Email:    "other@example.com",
		Password: "x",
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestUserRepository_SoftDeleteAndRestore(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	carol := testutil.CreateUser(t, db, "carol")

	require.NoError(t, repo.SetDeleted(ctx, carol.ID, true))

	user, err := repo.GetByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, user.IsDeleted)
	assert.False(t, user.CanAuthenticate())

	exists, err := repo.Exists(ctx, carol.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetProfile(ctx, carol.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	require.NoError(t, repo.SetDeleted(ctx, carol.ID, false))
	exists, err = repo.Exists(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.SetDeleted(ctx, 12345, true)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_SetAdminAndListAdmins(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	dave := testutil.CreateUser(t, db, "dave")
	testutil.CreateUser(t, db, "erin")

	require.NoError(t, repo.SetAdmin(ctx, dave.ID, true))

	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "dave", admins[0].Username)
}

func TestUserRepository_Search(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	testutil.CreateUser(t, db, "traveller")
	testutil.CreateUser(t, db, "foodie")
	hidden := testutil.CreateUser(t, db, "travelbug")
	require.NoError(t, repo.SetDeleted(ctx, hidden.ID, true))

	users, err := repo.Search(ctx, "TRAVEL", 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "traveller", users[0].Username)

	// Last name is searched too.
	users, err = repo.Search(ctx, "tester", 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserRepository_GetProfileCounts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "ann")
	b := testutil.CreateUser(t, db, "ben")
	c := testutil.CreateUser(t, db, "cat")

	_, _, err := follows.Create(ctx, b.ID, a.ID)
	require.NoError(t, err)
	_, _, err = follows.Create(ctx, c.ID, a.ID)
	require.NoError(t, err)
	_, _, err = follows.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)

	profile, err := repo.GetProfile(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, profile.FollowersCount)
	assert.EqualValues(t, 1, profile.FollowingCount)
}
