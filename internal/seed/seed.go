// Package seed loads a small demo data set into an empty or disposable database.
package seed

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/domain/models"
)

// DemoPassword is the password given to every seeded account.
const DemoPassword = "password123"

// Result lists the rows created by Run.
type Result struct {
	Admin        models.User
	RecordKeeper models.User
	Products     []models.Product
	Sales        []models.Sale
	Report       models.Report
}

// Run wipes users, products, sales and reports, then inserts the demo set.
// Sales are stamped at now.
func Run(ctx context.Context, db *gorm.DB, now time.Time) (*Result, error) {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := wipe(tx); err != nil {
			return err
		}

		res.Admin = models.User{Name: "System Admin", Email: "admin@example.com", PasswordHash: hash, Role: models.RoleAdmin}
		res.RecordKeeper = models.User{Name: "John Keeper", Email: "keeper@example.com", PasswordHash: hash, Role: models.RoleRecordKeeper}
		if err := tx.Create(&res.Admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		if err := tx.Create(&res.RecordKeeper).Error; err != nil {
			return fmt.Errorf("create record keeper: %w", err)
		}

		res.Products = []models.Product{
			{Name: "Paracetamol 500mg", Code: "P001", Category: "Pharmaceutical", Price: 10.0, Quantity: 90},
			{Name: "Vitamin C Tablets", Code: "P002", Category: "Supplement", Price: 15.5, Quantity: 45},
			{Name: "Surgical Gloves", Code: "P003", Category: "Medical Supply", Price: 50.0, Quantity: 4},
			{Name: "Face Mask Pack", Code: "P004", Category: "Medical Supply", Price: 25.0, Quantity: 3},
		}
		if err := tx.Create(&res.Products).Error; err != nil {
			return fmt.Errorf("create products: %w", err)
		}

		res.Sales = []models.Sale{
			{ProductID: res.Products[0].ID, Quantity: 10, Total: 100.0, Profit: 25.0, UserID: res.RecordKeeper.ID, CreatedAt: now.UTC()},
			{ProductID: res.Products[1].ID, Quantity: 5, Total: 77.5, Profit: 20.0, UserID: res.RecordKeeper.ID, CreatedAt: now.UTC()},
		}
		if err := tx.Omit("Product", "User").Create(&res.Sales).Error; err != nil {
			return fmt.Errorf("create sales: %w", err)
		}

		res.Report = models.Report{
			Title:         "Weekly Sales Report",
			ReportType:    models.ReportWeekly,
			TotalSales:    177.5,
			TotalProfit:   45.0,
			StartDate:     time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC),
			GeneratedByID: res.Admin.ID,
			Summary:       "Steady weekly performance across all categories.",
		}
		if err := tx.Omit("GeneratedBy", "Sales").Create(&res.Report).Error; err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// wipe clears the tables. Postgres identities restart so the admin gets id 1.
func wipe(tx *gorm.DB) error {
	if tx.Dialector.Name() == "postgres" {
		err := tx.Exec("TRUNCATE TABLE report_sales, reports, sales, products, users RESTART IDENTITY CASCADE").Error
		if err != nil {
			return fmt.Errorf("truncate tables: %w", err)
		}
		return nil
	}

	for _, table := range []string{"report_sales", "reports", "sales", "products", "users"} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	return nil
}
