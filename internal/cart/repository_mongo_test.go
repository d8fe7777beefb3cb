package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/wichananm65/pet-shop-storefront/internal/database"
)

func setupMongoRepo(t *testing.T) (*MongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := database.ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return repo, cleanup
}

func TestMongoRepository_UserAndGuestCoexist(t *testing.T) {
	repo, cleanup := setupMongoRepo(t)
	defer cleanup()
	ctx := context.Background()

	uc := newCart(UserOwner(1))
	uc.Items = []Item{{ProductID: 1, Quantity: 2}}
	_, err := repo.Save(ctx, uc)
	require.NoError(t, err)

	for _, tok := range []string{"g-a", "g-b"} {
		gc := newCart(GuestOwner(tok))
		gc.Items = []Item{{ProductID: 2, Quantity: 1}}
		_, err := repo.Save(ctx, gc)
		require.NoError(t, err, "guest carts must not collide on the user index")
	}

	got, err := repo.Get(ctx, UserOwner(1))
	require.NoError(t, err)
	assert.Nil(t, got.GuestToken)
	assert.Equal(t, 2, got.Items[0].Quantity)

	guest, err := repo.Get(ctx, GuestOwner("g-b"))
	require.NoError(t, err)
	assert.Nil(t, guest.UserID)
}

func TestMongoRepository_SaveUpsertsAndDelete(t *testing.T) {
	repo, cleanup := setupMongoRepo(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.Get(ctx, UserOwner(3))
	assert.ErrorIs(t, err, ErrNotFound)

	c := newCart(UserOwner(3))
	c.Items = []Item{{ProductID: 1, Quantity: 1}}
	first, err := repo.Save(ctx, c)
	require.NoError(t, err)

	first.Items[0].Quantity = 7
	second, err := repo.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 7, second.Items[0].Quantity)

	require.NoError(t, repo.Delete(ctx, UserOwner(3)))
	require.NoError(t, repo.Delete(ctx, UserOwner(3)))
	_, err = repo.Get(ctx, UserOwner(3))
	assert.ErrorIs(t, err, ErrNotFound)
}
