package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger owns every mutation of InventoryRecord rows. Quantity and status are
// always assigned together in the same block so they can never diverge, and
// all reads happen through the caller's transaction.
// 在庫記録の全変更を所有する在庫台帳。数量とステータスは常に同一箇所で代入する
type Ledger struct {
	logger *zap.Logger
}

// NewLedger creates a new inventory ledger
// 新しい在庫台帳を作成
func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// GetQuantity returns the current quantity at a location (0 if no record)
// 指定ロケーションの現在数量を返す（記録がなければ0）
func (l *Ledger) GetQuantity(ctx context.Context, tx Tx, companyID, itemID, locationID string) (int64, error) {
	record, err := tx.GetStockForUpdate(ctx, companyID, itemID, locationID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return 0, nil
		}
		return 0, NewStorageError("get_stock", "在庫取得に失敗しました", err)
	}
	return record.Quantity, nil
}

// Reduce decrements stock at a location, failing with ErrInsufficientStock
// when amount exceeds the current quantity. A record reaching zero keeps its
// row but is explicitly marked StatusEmpty.
// 指定ロケーションの在庫を減算。数量0到達時はStatusEmptyを明示的に設定する
func (l *Ledger) Reduce(ctx context.Context, tx Tx, companyID, userID, itemID, locationID string, amount int64) (*InventoryRecord, error) {
	if amount <= 0 {
		return nil, ErrInvalidQuantity
	}

	record, err := tx.GetStockForUpdate(ctx, companyID, itemID, locationID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return nil, &QuantityError{
				Kind:       ErrInsufficientStock,
				ItemID:     itemID,
				LocationID: locationID,
				Requested:  amount,
				Available:  0,
			}
		}
		return nil, NewStorageError("get_stock", "在庫取得に失敗しました", err)
	}

	if amount > record.Quantity {
		return nil, &QuantityError{
			Kind:       ErrInsufficientStock,
			ItemID:     itemID,
			LocationID: locationID,
			Requested:  amount,
			Available:  record.Quantity,
		}
	}

	// 数量とステータスを同一箇所で更新
	record.Quantity -= amount
	record.Status = StatusForQuantity(record.Quantity)
	record.UpdatedAt = time.Now()
	record.UpdatedBy = userID

	if err := tx.UpdateStock(ctx, record); err != nil {
		return nil, NewStorageError("update_stock", "在庫更新に失敗しました", err)
	}

	l.logger.Debug("在庫減算完了",
		zap.String("company_id", companyID),
		zap.String("item_id", itemID),
		zap.String("location_id", locationID),
		zap.Int64("amount", amount),
		zap.Int64("quantity", record.Quantity),
	)

	return record, nil
}

// Add increments stock at a location, creating the record on first inbound.
// When merging into an existing record the cost becomes the weighted average
// (existingQty*existingCost + amount*unitCost) / (existingQty + amount), and
// the status is forced to StatusAvailable whenever the merged quantity is
// positive regardless of the prior status.
// 指定ロケーションの在庫を加算。併合時は加重平均原価を再計算し、
// 結果数量が正なら以前のステータスに関わらずStatusAvailableへ戻す
func (l *Ledger) Add(ctx context.Context, tx Tx, companyID, userID, itemID, locationID string, amount int64, unitCost decimal.Decimal, sourceReference string) (*InventoryRecord, error) {
	if amount < 0 {
		return nil, ErrInvalidQuantity
	}

	record, err := tx.GetStockForUpdate(ctx, companyID, itemID, locationID)
	if err != nil && !errors.Is(err, ErrStockNotFound) {
		return nil, NewStorageError("get_stock", "在庫取得に失敗しました", err)
	}

	now := time.Now()
	if record == nil {
		record = &InventoryRecord{
			CompanyID:       companyID,
			ItemID:          itemID,
			LocationID:      locationID,
			Quantity:        amount,
			Status:          StatusForQuantity(amount),
			LastCostPrice:   unitCost,
			SourceReference: sourceReference,
			CreatedAt:       now,
			UpdatedAt:       now,
			UpdatedBy:       userID,
		}

		if err := tx.CreateStock(ctx, record); err != nil {
			return nil, NewStorageError("create_stock", "在庫作成に失敗しました", err)
		}
	} else {
		mergedQty := record.Quantity + amount
		if mergedQty > 0 {
			// 加重平均原価: (既存数量*既存原価 + 加算数量*単価) / 併合数量
			existing := decimal.NewFromInt(record.Quantity).Mul(record.LastCostPrice)
			incoming := decimal.NewFromInt(amount).Mul(unitCost)
			record.LastCostPrice = existing.Add(incoming).Div(decimal.NewFromInt(mergedQty))
		} else if record.LastCostPrice.IsZero() {
			// 併合数量0（amount=0の無操作ケース）は除算せず、欠けている方の原価を残す
			record.LastCostPrice = unitCost
		}

		record.Quantity = mergedQty
		record.Status = StatusForQuantity(record.Quantity)
		record.UpdatedAt = now
		record.UpdatedBy = userID

		if err := tx.UpdateStock(ctx, record); err != nil {
			return nil, NewStorageError("update_stock", "在庫更新に失敗しました", err)
		}
	}

	l.logger.Debug("在庫加算完了",
		zap.String("company_id", companyID),
		zap.String("item_id", itemID),
		zap.String("location_id", locationID),
		zap.Int64("amount", amount),
		zap.Int64("quantity", record.Quantity),
		zap.String("last_cost_price", record.LastCostPrice.String()),
	)

	return record, nil
}
