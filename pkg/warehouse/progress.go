package warehouse

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ProgressTracker mutates a demand line's cumulative fulfilled quantity and
// derives its status. It is not idempotent: a duplicate call double-counts,
// so the transfer engine must invoke it exactly once per accepted request,
// inside the same transaction as the ledger changes.
// 明細行の充足カウンタを更新するトラッカー。冪等ではないため、
// 受理された移動1件につき移動エンジンがぴったり1回だけ呼び出す
type ProgressTracker struct {
	logger *zap.Logger
}

// NewProgressTracker creates a new progress tracker
// 新しい進捗トラッカーを作成
func NewProgressTracker(logger *zap.Logger) *ProgressTracker {
	return &ProgressTracker{logger: logger}
}

// RecordFulfillment increments the line's fulfilled quantity and recomputes
// the derived status. Fails with ErrOverFulfillment when the increment would
// push fulfilled past required (defense in depth mirroring the engine check).
// 充足数量を加算し、派生ステータスを再計算。必要数量超過はErrOverFulfillment
func (p *ProgressTracker) RecordFulfillment(ctx context.Context, tx Tx, line *DemandLine, quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if line.FulfilledQuantity+quantity > line.RequiredQuantity {
		return &QuantityError{
			Kind:      ErrOverFulfillment,
			ItemID:    line.ItemID,
			Requested: quantity,
			Available: line.RemainingQuantity(),
		}
	}

	// カウンタとステータスを同一箇所で更新
	line.FulfilledQuantity += quantity
	line.Status = StatusForFulfillment(line.FulfilledQuantity, line.RequiredQuantity)
	line.UpdatedAt = time.Now()

	if err := tx.UpdateDemandLine(ctx, line); err != nil {
		return NewStorageError("update_demand_line", "明細行更新に失敗しました", err)
	}

	p.logger.Debug("充足記録完了",
		zap.String("demand_line_id", line.ID),
		zap.Int64("fulfilled", line.FulfilledQuantity),
		zap.Int64("remaining", line.RemainingQuantity()),
		zap.String("status", string(line.Status)),
	)

	return nil
}

// RefreshDocumentStatus derives the parent document's status after a line
// change: completed when no open line remains, partial once any line has
// progressed. Returns whether the document is now completed.
// 明細更新後に親ドキュメントのステータスを導出。完了したかどうかを返す
func (p *ProgressTracker) RefreshDocumentStatus(ctx context.Context, tx Tx, document *Document) (bool, error) {
	openLines, err := tx.CountOpenLines(ctx, document.CompanyID, document.ID)
	if err != nil {
		return false, NewStorageError("count_open_lines", "未完了明細数の取得に失敗しました", err)
	}

	status := DocumentPartial
	if openLines == 0 {
		status = DocumentCompleted
	}

	if status != document.Status {
		if err := tx.UpdateDocumentStatus(ctx, document.CompanyID, document.ID, status); err != nil {
			return false, NewStorageError("update_document_status", "ドキュメントステータス更新に失敗しました", err)
		}
		document.Status = status
	}

	return status == DocumentCompleted, nil
}
