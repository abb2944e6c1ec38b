package ledger

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/repository/postgres"
)

// Service records products and sales against the store.
type Service struct {
	store  *postgres.Store
	logger *zap.Logger
}

// NewService builds a ledger service.
func NewService(store *postgres.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// SaleInput is a sale as submitted by a record keeper. Profit defaults to
// DefaultProfitRate of the total when nil.
type SaleInput struct {
	ProductID uint     `json:"productId"`
	Quantity  int      `json:"quantity"`
	Profit    *float64 `json:"profit"`
}

// SaleUpdate is a corrective change to a recorded sale.
type SaleUpdate struct {
	Quantity *int     `json:"quantity"`
	Profit   *float64 `json:"profit"`
}

// RecordSale prices the sale from the product, decrements stock and stores it
// in one transaction.
func (s *Service) RecordSale(ctx context.Context, userID uint, in SaleInput) (*models.Sale, error) {
	if in.ProductID == 0 {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if in.Profit != nil && *in.Profit < 0 {
		return nil, fmt.Errorf("%w: profit must not be negative", ErrInvalidInput)
	}

	var sale *models.Sale
	err := s.store.Transaction(ctx, func(tx *postgres.Store) error {
		product, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if product.Quantity < in.Quantity {
			return fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, product.Name, product.Quantity)
		}

		total := saleTotal(product.Price, in.Quantity)
		sale = &models.Sale{
			ProductID: product.ID,
			Quantity:  in.Quantity,
			Total:     total,
			Profit:    profitOrDefault(in.Profit, total),
			UserID:    userID,
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}

		product.Quantity -= in.Quantity
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		sale.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale recorded",
		zap.Uint("sale_id", sale.ID),
		zap.Uint("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.Float64("total", sale.Total),
	)
	return sale, nil
}

// UpdateSale changes quantity and profit of a recorded sale. The total is
// recomputed from the product's current price and stock absorbs the difference.
func (s *Service) UpdateSale(ctx context.Context, id uint, in SaleUpdate) (*models.Sale, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if in.Profit != nil && *in.Profit < 0 {
		return nil, fmt.Errorf("%w: profit must not be negative", ErrInvalidInput)
	}

	var sale *models.Sale
	err := s.store.Transaction(ctx, func(tx *postgres.Store) error {
		var err error
		sale, err = tx.GetSale(ctx, id)
		if err != nil {
			return err
		}
		product, err := tx.GetProductForUpdate(ctx, sale.ProductID)
		if err != nil {
			return err
		}

		quantity := sale.Quantity
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		delta := quantity - sale.Quantity
		if delta > product.Quantity {
			return fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, product.Name, product.Quantity)
		}

		sale.Quantity = quantity
		sale.Total = saleTotal(product.Price, quantity)
		switch {
		case in.Profit != nil:
			sale.Profit = *in.Profit
		case in.Quantity != nil:
			sale.Profit = profitOrDefault(nil, sale.Total)
		}
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}

		if delta != 0 {
			product.Quantity -= delta
			if err := tx.UpdateProduct(ctx, product); err != nil {
				return err
			}
		}
		sale.Product = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.store.ListSales(ctx)
}

func (s *Service) SalesByProduct(ctx context.Context, productID uint) ([]models.Sale, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.SalesByProduct(ctx, productID)
}

func (s *Service) GetSale(ctx context.Context, id uint) (*models.Sale, error) {
	return s.store.GetSale(ctx, id)
}

func (s *Service) DeleteSale(ctx context.Context, id uint) error {
	return s.store.DeleteSale(ctx, id)
}

func saleTotal(price float64, quantity int) float64 {
	return roundCents(price * float64(quantity))
}

func profitOrDefault(profit *float64, total float64) float64 {
	if profit != nil {
		return *profit
	}
	return roundCents(total * models.DefaultProfitRate)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
