package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jopa/salestracker/internal/domain/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("record already exists")
)

// Store persists the sales ledger, catalogue, users and reports.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that manage their own queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Products

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("create product: %w", translate(err))
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, translate(err))
	}
	return &product, nil
}

// GetProductForUpdate loads a product with a row lock when the dialect supports one.
func (s *Store) GetProductForUpdate(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, id).Error
	if err != nil {
		return nil, fmt.Errorf("lock product %d: %w", id, translate(err))
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Save(product).Error; err != nil {
		return fmt.Errorf("update product %d: %w", product.ID, translate(err))
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, &models.Product{}, id, "product")
}

// LowStockProducts returns products whose quantity is at or below threshold,
// lowest quantity first.
func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("quantity <= ?", threshold).
		Order("quantity ASC").Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, translate(err))
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("get user by email: %w", translate(err))
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("update user %d: %w", user.ID, translate(err))
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, &models.User{}, id, "user")
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Sales

func (s *Store) CreateSale(ctx context.Context, sale *models.Sale) error {
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(sale).Error; err != nil {
		return fmt.Errorf("create sale: %w", translate(err))
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.WithContext(ctx).Preload("Product").Preload("User").First(&sale, id).Error
	if err != nil {
		return nil, fmt.Errorf("get sale %d: %w", id, translate(err))
	}
	return &sale, nil
}

// ListSales returns every sale, newest first, with product and user loaded.
func (s *Store) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.findSales(s.db.WithContext(ctx), 0)
}

func (s *Store) SalesByProduct(ctx context.Context, productID uint) ([]models.Sale, error) {
	return s.findSales(s.db.WithContext(ctx).Where("product_id = ?", productID), 0)
}

// RecentSales returns at most limit sales, newest first.
func (s *Store) RecentSales(ctx context.Context, limit int) ([]models.Sale, error) {
	return s.findSales(s.db.WithContext(ctx), limit)
}

// SalesBetween returns the sales created inside the inclusive [from, to] range,
// newest first.
func (s *Store) SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	q := s.db.WithContext(ctx).Where("created_at BETWEEN ? AND ?", from.UTC(), to.UTC())
	return s.findSales(q, 0)
}

func (s *Store) findSales(q *gorm.DB, limit int) ([]models.Sale, error) {
	q = q.Preload("Product").Preload("User").Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sales []models.Sale
	if err := q.Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale *models.Sale) error {
	err := s.db.WithContext(ctx).Model(sale).Select("quantity", "total", "profit").Updates(sale).Error
	if err != nil {
		return fmt.Errorf("update sale %d: %w", sale.ID, translate(err))
	}
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, id uint) error {
	return s.deleteByID(ctx, &models.Sale{}, id, "sale")
}

func (s *Store) CountSales(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Sale{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return count, nil
}

type totalsRow struct {
	SumTotal  float64
	SumProfit float64
	AvgTotal  float64
	Cnt       int64
}

// SalesTotals sums sales inside window, or the whole ledger when window is nil.
func (s *Store) SalesTotals(ctx context.Context, window *models.Window) (models.SalesTotals, error) {
	q := s.db.WithContext(ctx).Model(&models.Sale{})
	if window != nil {
		q = q.Where("created_at BETWEEN ? AND ?", window.Start.UTC(), window.End.UTC())
	}

	var row totalsRow
	err := q.Select(
		"COALESCE(SUM(total), 0) AS sum_total, " +
			"COALESCE(SUM(profit), 0) AS sum_profit, " +
			"COALESCE(AVG(total), 0) AS avg_total, " +
			"COUNT(*) AS cnt",
	).Scan(&row).Error
	if err != nil {
		return models.SalesTotals{}, fmt.Errorf("sales totals: %w", err)
	}

	return models.SalesTotals{
		Total:   row.SumTotal,
		Profit:  row.SumProfit,
		Average: row.AvgTotal,
		Count:   row.Cnt,
	}, nil
}

type groupRow struct {
	GroupID   uint
	SumQty    int64
	SumTotal  float64
	SumProfit float64
}

func (s *Store) groupedTotals(ctx context.Context, column string, limit int) ([]groupRow, error) {
	var rows []groupRow
	err := s.db.WithContext(ctx).Model(&models.Sale{}).
		Select(column + " AS group_id, " +
			"COALESCE(SUM(quantity), 0) AS sum_qty, " +
			"COALESCE(SUM(total), 0) AS sum_total, " +
			"COALESCE(SUM(profit), 0) AS sum_profit").
		Group(column).
		Order("sum_total DESC").Order("group_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// TopProducts ranks products by summed sales total, highest first.
func (s *Store) TopProducts(ctx context.Context, limit int) ([]models.ProductSales, error) {
	rows, err := s.groupedTotals(ctx, "product_id", limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GroupID)
	}
	var products []models.Product
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("top products: load products: %w", err)
		}
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]models.ProductSales, 0, len(rows))
	for _, r := range rows {
		product, ok := byID[r.GroupID]
		if !ok {
			product = models.Product{ID: r.GroupID}
		}
		out = append(out, models.ProductSales{
			Product:  product,
			Quantity: r.SumQty,
			Total:    r.SumTotal,
			Profit:   r.SumProfit,
		})
	}
	return out, nil
}

// TopUsers ranks users by the summed total of the sales they recorded.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]models.UserSales, error) {
	rows, err := s.groupedTotals(ctx, "user_id", limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GroupID)
	}
	var users []models.User
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("top users: load users: %w", err)
		}
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]models.UserSales, 0, len(rows))
	for _, r := range rows {
		user, ok := byID[r.GroupID]
		if !ok {
			user = models.User{ID: r.GroupID}
		}
		out = append(out, models.UserSales{User: user, Total: r.SumTotal, Profit: r.SumProfit})
	}
	return out, nil
}

// Reports

// CreateReport inserts a report. Sales already attached to the report are linked,
// not re-inserted.
func (s *Store) CreateReport(ctx context.Context, report *models.Report) error {
	err := s.db.WithContext(ctx).Omit("GeneratedBy", "Sales.*").Create(report).Error
	if err != nil {
		return fmt.Errorf("create report: %w", translate(err))
	}
	return nil
}

// ListReports returns reports newest first, without their linked sales.
func (s *Store) ListReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Preload("GeneratedBy").
		Order("generated_at DESC").Order("id DESC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *Store) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).
		Preload("GeneratedBy").
		Preload("Sales", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Sales.Product").
		Preload("Sales.User").
		First(&report, id).Error
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, translate(err))
	}
	return &report, nil
}

func (s *Store) CountReports(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Report{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}

// DeleteReport removes a report and its sale links.
func (s *Store) DeleteReport(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(tx *Store) error {
		report := models.Report{ID: id}
		if err := tx.db.Model(&report).Association("Sales").Clear(); err != nil {
			return fmt.Errorf("clear report %d sales: %w", id, err)
		}
		return tx.deleteByID(ctx, &models.Report{}, id, "report")
	})
}

func (s *Store) deleteByID(ctx context.Context, model any, id uint, kind string) error {
	res := s.db.WithContext(ctx).Delete(model, id)
	if res.Error != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
