package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jopa/salestracker/internal/domain/models"
)

// ProductInput carries the writable product fields. Nil fields are left
// unchanged on update.
type ProductInput struct {
	Name     *string  `json:"name"`
	Code     *string  `json:"code"`
	Category *string  `json:"category"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

// CreateProduct validates in and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Name == nil || in.Code == nil || in.Price == nil {
		return nil, fmt.Errorf("%w: name, code and price are required", ErrInvalidInput)
	}

	product := &models.Product{}
	if err := applyProduct(product, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct applies the non-nil fields of in to product id.
func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProduct(product, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	return s.store.DeleteProduct(ctx, id)
}

func applyProduct(product *models.Product, in ProductInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		product.Name = name
	}
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if code == "" {
			return fmt.Errorf("%w: code must not be empty", ErrInvalidInput)
		}
		product.Code = code
	}
	if in.Category != nil {
		product.Category = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
		}
		product.Price = *in.Price
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
		}
		product.Quantity = *in.Quantity
	}
	return nil
}
