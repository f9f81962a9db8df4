package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech4loop/marketplace-backend/pkg/db/dbtest"
	"github.com/tech4loop/marketplace-backend/pkg/db/models"
	"github.com/tech4loop/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tech4loop/marketplace-backend/pkg/errors"
)

func TestRepositoryFind(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	partner := models.Profile{ID: uuid.New(), Role: enums.RolePartner, ServiceRegions: pq.StringArray{"RO", "AC"}}
	require.NoError(t, db.Create(&partner).Error)

	got, err := repo.FindByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"RO", "AC"}, []string(got.ServiceRegions))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	many, err := repo.FindByIDs(ctx, []uuid.UUID{partner.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}
