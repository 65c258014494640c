package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Adjustment moves Count units of a product from stock to sold.
type Adjustment struct {
	ProductID uuid.UUID
	Count     int
}

// Result summarizes one batch.
type Result struct {
	Requested int
	Applied   int
	Missing   []uuid.UUID
	// Oversold lists products whose stock went negative after the batch.
	Oversold []uuid.UUID
}

// Adjuster applies stock decrements and sold increments in one batch on the
// caller's transaction.
type Adjuster struct{}

// NewAdjuster builds an inventory adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// AdjustmentsFromCart builds one adjustment per cart line.
func AdjustmentsFromCart(items []models.CartItem) []Adjustment {
	out := make([]Adjustment, 0, len(items))
	for _, item := range items {
		out = append(out, Adjustment{ProductID: item.ProductID, Count: item.Quantity})
	}
	return out
}

// Apply runs quantity -= n, sold += n for every product. A product that does
// not exist matches no row and is reported in Result.Missing, not as an error.
func (a *Adjuster) Apply(ctx context.Context, tx *gorm.DB, adjustments []Adjustment) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}

	merged := merge(adjustments)
	result := Result{Requested: len(merged)}
	for _, adj := range merged {
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", adj.ProductID).
			UpdateColumns(map[string]any{
				"quantity": gorm.Expr("quantity - ?", adj.Count),
				"sold":     gorm.Expr("sold + ?", adj.Count),
			})
		if res.Error != nil {
			return result, fmt.Errorf("adjust product %s: %w", adj.ProductID, res.Error)
		}
		if res.RowsAffected == 0 {
			result.Missing = append(result.Missing, adj.ProductID)
			continue
		}
		result.Applied++
	}

	if result.Applied == 0 {
		return result, nil
	}
	ids := make([]uuid.UUID, 0, len(merged))
	for _, adj := range merged {
		ids = append(ids, adj.ProductID)
	}
	if err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ? AND quantity < 0", ids).
		Pluck("id", &result.Oversold).Error; err != nil {
		return result, fmt.Errorf("check oversold products: %w", err)
	}
	return result, nil
}

// merge sums counts per product, keeps first-seen order and drops
// non-positive counts.
func merge(adjustments []Adjustment) []Adjustment {
	index := make(map[uuid.UUID]int, len(adjustments))
	out := make([]Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		if adj.Count <= 0 || adj.ProductID == uuid.Nil {
			continue
		}
		if i, ok := index[adj.ProductID]; ok {
			out[i].Count += adj.Count
			continue
		}
		index[adj.ProductID] = len(out)
		out = append(out, adj)
	}
	return out
}
