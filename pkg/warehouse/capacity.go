package warehouse

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CapacityTracker maintains each location's used capacity, a cached sum of
// the inventory quantities held there. The destination check runs before any
// ledger mutation; the source release happens inside the same transaction.
// ロケーションの使用収容量を管理。移動先チェックは台帳変更より前に行う
type CapacityTracker struct {
	logger *zap.Logger
}

// NewCapacityTracker creates a new capacity tracker
// 新しい収容量トラッカーを作成
func NewCapacityTracker(logger *zap.Logger) *CapacityTracker {
	return &CapacityTracker{logger: logger}
}

// CheckCapacity validates that a location can hold an additional quantity
// ロケーションが追加数量を収容できるかを検証
func (c *CapacityTracker) CheckCapacity(location *Location, additionalQuantity int64) error {
	if location.CurrentCapacity+additionalQuantity > location.MaxCapacity {
		return &QuantityError{
			Kind:       ErrCapacityExceeded,
			LocationID: location.ID,
			Requested:  additionalQuantity,
			Available:  location.AvailableCapacity(),
		}
	}
	return nil
}

// ApplyDelta adjusts a location's current capacity by delta (positive for
// inbound, negative for outbound) and persists it through the transaction.
// The result may never be negative nor exceed the maximum.
// ロケーションの現在使用量をdeltaだけ調整して永続化。結果は常に 0..MaxCapacity
func (c *CapacityTracker) ApplyDelta(ctx context.Context, tx Tx, location *Location, delta int64) error {
	next := location.CurrentCapacity + delta
	if next < 0 {
		return NewStorageError("apply_delta", "現在使用量が負になります", nil)
	}
	if next > location.MaxCapacity {
		return &QuantityError{
			Kind:       ErrCapacityExceeded,
			LocationID: location.ID,
			Requested:  delta,
			Available:  location.AvailableCapacity(),
		}
	}

	location.CurrentCapacity = next
	location.UpdatedAt = time.Now()

	if err := tx.UpdateLocationCapacity(ctx, location.CompanyID, location.ID, next); err != nil {
		return NewStorageError("update_location_capacity", "収容量更新に失敗しました", err)
	}

	c.logger.Debug("収容量更新完了",
		zap.String("location_id", location.ID),
		zap.Int64("delta", delta),
		zap.Int64("current_capacity", next),
	)

	return nil
}
