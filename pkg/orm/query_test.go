package orm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/pkg/database"
	"github.com/onyxia-store/onyxia/pkg/orm"
)

type gem struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Carat float64
}

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&gem{}))
	return db
}

func TestQueryCRUD(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	for _, g := range []gem{{Name: "opal", Carat: 1.2}, {Name: "ruby", Carat: 0.8}, {Name: "jade", Carat: 2}} {
		g := g
		require.NoError(t, orm.On(ctx, db).Create(&g))
	}

	var all []gem
	require.NoError(t, orm.On(ctx, db).Model(&gem{}).Order("carat desc").Limit(2).Get(&all))
	require.Len(t, all, 2)
	assert.Equal(t, "jade", all[0].Name)

	n, err := orm.On(ctx, db).Model(&gem{}).Where("carat > ?", 1).Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var one gem
	err = orm.On(ctx, db).Where("name = ?", "diamond").First(&one)
	assert.ErrorIs(t, err, orm.ErrNotFound)

	err = orm.On(ctx, db).Model(&gem{}).Where("id = ?", 99).Updates(map[string]interface{}{"carat": 3})
	assert.ErrorIs(t, err, orm.ErrNotFound)
	require.NoError(t, orm.On(ctx, db).Model(&gem{}).Where("name = ?", "ruby").Updates(map[string]interface{}{"carat": 3}))

	require.NoError(t, orm.On(ctx, db).Delete(&gem{}, 1))
	assert.ErrorIs(t, orm.On(ctx, db).Delete(&gem{}, 1), orm.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := orm.Transaction(ctx, db, func(tx *gorm.DB) error {
		if err := orm.On(ctx, tx).Create(&gem{Name: "topaz"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := orm.On(ctx, db).Model(&gem{}).Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
