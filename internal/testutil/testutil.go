// Package testutil opens throwaway SQLite databases and seeds the rows most
// tests need.
package testutil

import (
	"fmt"
	"testing"

	"stockpos/internal/infra"
	"stockpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := infra.NewDatabase(infra.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// User inserts an active user. The password hash is not a valid bcrypt
// hash; use the auth service when logging in matters.
func User(t testing.TB, db *gorm.DB, username, role string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Category(t testing.TB, db *gorm.DB, name string) *model.Category {
	t.Helper()
	c := &model.Category{Name: name}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Product inserts a product in category c priced at price (e.g. "5.00").
func Product(t testing.TB, db *gorm.DB, c *model.Category, name, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: c.ID,
	}
	require.NoError(t, db.Omit("Category", "Supplier").Create(p).Error)
	return p
}

// Stock re-reads a product's stock.
func Stock(t testing.TB, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.Select("stock").First(&p, "id = ?", id).Error)
	return p.Stock
}
