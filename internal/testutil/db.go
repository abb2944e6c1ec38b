// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jopa/salestracker/internal/domain/models"
)

// NewDB opens a private in-memory SQLite database with the schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.Sale{}, &models.Report{}))
	return db
}

// Fixture inserts rows directly, bypassing service rules.
type Fixture struct {
	t  *testing.T
	db *gorm.DB
}

// NewFixture wraps db for row insertion in tests.
func NewFixture(t *testing.T, db *gorm.DB) *Fixture {
	return &Fixture{t: t, db: db}
}

func (f *Fixture) User(name string, role models.Role) models.User {
	f.t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(f.t, f.db.Create(&user).Error)
	return user
}

func (f *Fixture) Product(name string, price float64, quantity int) models.Product {
	f.t.Helper()
	product := models.Product{
		Name:     name,
		Code:     "P-" + uuid.NewString()[:8],
		Category: "General",
		Price:    price,
		Quantity: quantity,
	}
	require.NoError(f.t, f.db.Create(&product).Error)
	return product
}

func (f *Fixture) Sale(product models.Product, user models.User, quantity int, total, profit float64, at time.Time) models.Sale {
	f.t.Helper()
	sale := models.Sale{
		ProductID: product.ID,
		Quantity:  quantity,
		Total:     total,
		Profit:    profit,
		UserID:    user.ID,
		CreatedAt: at.UTC(),
	}
	require.NoError(f.t, f.db.Omit("Product", "User").Create(&sale).Error)
	return sale
}
