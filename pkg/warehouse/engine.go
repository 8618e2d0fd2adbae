package warehouse

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Config holds configuration for the transfer engine
// 移動エンジンの設定を保持
type Config struct {
	// MaxTransferQuantity caps a single transfer request (0 = unlimited)
	// 1回の移動リクエストの数量上限（0で無制限）
	MaxTransferQuantity int64 `yaml:"max_transfer_quantity"`
}

// Engine implements the TransferEngine interface. It orchestrates the
// ownership guard, inventory ledger, capacity tracker and progress tracker
// inside one database transaction per transfer, so either every step commits
// or none does.
// TransferEngineインターフェースの実装。1移動=1トランザクションで全ステップを束ねる
type Engine struct {
	store    Store
	guard    *OwnershipGuard
	ledger   *Ledger
	capacity *CapacityTracker
	progress *ProgressTracker
	metrics  *Metrics
	logger   *zap.Logger
	config   *Config
}

// インターフェースを実装することを明示
var _ TransferEngine = (*Engine)(nil)

// NewEngine creates a new transfer engine
// 新しい移動エンジンを作成
func NewEngine(store Store, metrics *Metrics, logger *zap.Logger, config *Config) *Engine {
	if config == nil {
		config = &Config{MaxTransferQuantity: 0}
	}

	return &Engine{
		store:    store,
		guard:    NewOwnershipGuard(logger),
		ledger:   NewLedger(logger),
		capacity: NewCapacityTracker(logger),
		progress: NewProgressTracker(logger),
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// transferRequest carries one validated movement through the transaction
// 1件の移動要求をトランザクション内で引き回す内部表現
type transferRequest struct {
	companyID    string
	userID       string
	kind         DocumentKind
	movement     MovementType
	documentID   string
	lineID       string
	itemID       string // 空の場合は明細行の商品IDを採用
	sourceID     string // 空の場合はドキュメントの一時保管ロケーションを採用
	destID       string // 空の場合はドキュメントの一時保管ロケーションを採用
	destCategory LocationCategory
	quantity     int64
}

// ProcessPutaway moves received stock from the ASN's holding location into a
// storage location. The source is always resolved from the ASN itself, never
// supplied by the caller.
// 入庫格納: ASNの一時保管ロケーションから保管ロケーションへ在庫を移動
func (e *Engine) ProcessPutaway(ctx context.Context, companyID, userID, asnID, asnLineID, itemID, destLocationID string, quantity int64) (*TransferResult, error) {
	return e.transfer(ctx, &transferRequest{
		companyID:    companyID,
		userID:       userID,
		kind:         DocumentASN,
		movement:     MovementPutaway,
		documentID:   asnID,
		lineID:       asnLineID,
		itemID:       itemID,
		destID:       destLocationID,
		destCategory: LocationStorage,
		quantity:     quantity,
	})
}

// ProcessPickingItem moves stock from a storage location into the picking's
// holding location. The destination is always resolved from the picking
// document itself, never supplied by the caller.
// ピッキング: 保管ロケーションからピッキングの一時保管ロケーションへ在庫を移動
func (e *Engine) ProcessPickingItem(ctx context.Context, companyID, userID, pickingID, pickingLineID, sourceLocationID string, quantity int64) (*TransferResult, error) {
	return e.transfer(ctx, &transferRequest{
		companyID:    companyID,
		userID:       userID,
		kind:         DocumentPicking,
		movement:     MovementPick,
		documentID:   pickingID,
		lineID:       pickingLineID,
		sourceID:     sourceLocationID,
		destCategory: LocationHolding,
		quantity:     quantity,
	})
}

// transfer executes one movement. Preconditions fail fast in a fixed order;
// the execution steps (reduce source, release source capacity, add to
// destination, reserve destination capacity, record fulfillment) all commit
// together or roll back together.
// 移動の実行本体。前提条件は固定順でフェイルファースト、実行ステップは全てまとめてコミット/ロールバック
func (e *Engine) transfer(ctx context.Context, req *transferRequest) (result *TransferResult, err error) {
	started := time.Now()
	defer func() {
		e.metrics.ObserveTransfer(string(req.movement), started, req.quantity, err)
	}()

	// 前提条件1: 数量
	if err = ValidateTransferQuantity(req.quantity, e.config.MaxTransferQuantity); err != nil {
		return nil, err
	}
	if err = ValidateCompanyID(req.companyID); err != nil {
		return nil, err
	}
	if err = ValidateUserID(req.userID); err != nil {
		return nil, err
	}

	err = e.store.WithinTx(ctx, func(tx Tx) error {
		// 前提条件2: 所有権チェーン（トランザクション内で再読込）
		document, line, gerr := e.guard.ValidateOwnership(ctx, tx, req.companyID, req.kind, req.documentID, req.lineID)
		if gerr != nil {
			return gerr
		}

		itemID := req.itemID
		if itemID == "" {
			itemID = line.ItemID
		} else if itemID != line.ItemID {
			return NewValidationError("item_id", "明細行の商品と一致しません", itemID)
		}

		item, gerr := tx.GetItem(ctx, req.companyID, itemID)
		if gerr != nil {
			if errors.Is(gerr, ErrItemNotFound) {
				return ErrItemNotFound
			}
			return NewStorageError("get_item", "商品取得に失敗しました", gerr)
		}

		// 前提条件3: 残数量
		if req.quantity > line.RemainingQuantity() {
			return &QuantityError{
				Kind:      ErrOverFulfillment,
				ItemID:    itemID,
				Requested: req.quantity,
				Available: line.RemainingQuantity(),
			}
		}

		sourceID := req.sourceID
		if sourceID == "" {
			sourceID = document.HoldingLocationID
		}
		destID := req.destID
		if destID == "" {
			destID = document.HoldingLocationID
		}
		if sourceID == destID {
			return NewValidationError("location", "移動元と移動先が同じです", sourceID)
		}

		source, dest, gerr := e.lockLocations(ctx, tx, req.companyID, sourceID, destID)
		if gerr != nil {
			return gerr
		}

		// 前提条件4: 移動先の状態と種別
		if !dest.IsActive {
			return &LocationError{LocationID: dest.ID, Inactive: true}
		}
		if dest.Category != req.destCategory {
			return &LocationError{LocationID: dest.ID, Category: dest.Category, Expected: req.destCategory}
		}
		if !source.IsActive {
			return &LocationError{LocationID: source.ID, Inactive: true}
		}

		// 前提条件5: 移動先収容量（台帳変更より前）
		if gerr = e.capacity.CheckCapacity(dest, req.quantity); gerr != nil {
			return gerr
		}

		// 実行a: 移動元の在庫を減算（前提条件6の在庫不足チェックを含む）
		sourceRecord, gerr := e.ledger.Reduce(ctx, tx, req.companyID, req.userID, itemID, source.ID, req.quantity)
		if gerr != nil {
			return gerr
		}

		// 実行b: 移動元の収容量を解放
		if gerr = e.capacity.ApplyDelta(ctx, tx, source, -req.quantity); gerr != nil {
			return gerr
		}

		// 実行c: 移動先へ在庫を加算。単価は移動元記録の加重平均原価、
		// 原価未設定の場合のみ商品の標準単価で補完
		unitCost := sourceRecord.LastCostPrice
		if unitCost.IsZero() {
			unitCost = item.StandardPrice
		}
		if _, gerr = e.ledger.Add(ctx, tx, req.companyID, req.userID, itemID, dest.ID, req.quantity, unitCost, document.ID); gerr != nil {
			return gerr
		}

		// 実行d: 移動先の収容量を確保
		if gerr = e.capacity.ApplyDelta(ctx, tx, dest, req.quantity); gerr != nil {
			return gerr
		}

		// 実行e: 明細行の充足を記録
		if gerr = e.progress.RecordFulfillment(ctx, tx, line, req.quantity); gerr != nil {
			return gerr
		}

		documentCompleted, gerr := e.progress.RefreshDocumentStatus(ctx, tx, document)
		if gerr != nil {
			return gerr
		}

		// 移動ジャーナルへ追記
		movement := &Movement{
			ID:             NewTransferID(),
			CompanyID:      req.companyID,
			Type:           req.movement,
			ItemID:         itemID,
			FromLocationID: source.ID,
			ToLocationID:   dest.ID,
			Quantity:       req.quantity,
			UnitCost:       unitCost,
			DocumentID:     document.ID,
			DemandLineID:   line.ID,
			CreatedAt:      time.Now(),
			CreatedBy:      req.userID,
		}
		if gerr = tx.CreateMovement(ctx, movement); gerr != nil {
			return NewStorageError("create_movement", "移動記録作成に失敗しました", gerr)
		}

		result = &TransferResult{
			TransferID:        movement.ID,
			DemandLineID:      line.ID,
			FulfilledQuantity: line.FulfilledQuantity,
			RemainingQuantity: line.RemainingQuantity(),
			LineCompleted:     line.Status == LineComplete,
			DocumentCompleted: documentCompleted,
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("在庫移動に失敗しました",
			zap.String("company_id", req.companyID),
			zap.String("movement", string(req.movement)),
			zap.String("document_id", req.documentID),
			zap.String("demand_line_id", req.lineID),
			zap.Int64("quantity", req.quantity),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("在庫移動完了",
		zap.String("company_id", req.companyID),
		zap.String("movement", string(req.movement)),
		zap.String("transfer_id", result.TransferID),
		zap.String("demand_line_id", result.DemandLineID),
		zap.Int64("quantity", req.quantity),
		zap.Int64("remaining", result.RemainingQuantity),
		zap.Bool("document_completed", result.DocumentCompleted),
	)

	return result, nil
}

// lockLocations acquires both location rows in a deterministic id order so
// two concurrent transfers touching the same pair cannot deadlock.
// 2つのロケーション行をID昇順でロックし、相互デッドロックを防ぐ
func (e *Engine) lockLocations(ctx context.Context, tx Tx, companyID, sourceID, destID string) (*Location, *Location, error) {
	firstID, secondID := sourceID, destID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	locked := make(map[string]*Location, 2)
	for _, id := range []string{firstID, secondID} {
		loc, err := tx.GetLocationForUpdate(ctx, companyID, id)
		if err != nil {
			if errors.Is(err, ErrLocationNotFound) {
				return nil, nil, ErrLocationNotFound
			}
			return nil, nil, NewStorageError("get_location", "ロケーション取得に失敗しました", err)
		}
		locked[id] = loc
	}

	return locked[sourceID], locked[destID], nil
}

// GetInventorySnapshot returns every (location, quantity, status) for an item
// 商品の全ロケーション在庫スナップショットを返す
func (e *Engine) GetInventorySnapshot(ctx context.Context, companyID, itemID string) ([]StockSnapshot, error) {
	if _, err := e.store.GetItem(ctx, companyID, itemID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, NewStorageError("get_item", "商品取得に失敗しました", err)
	}

	records, err := e.store.ListStockByItem(ctx, companyID, itemID)
	if err != nil {
		return nil, NewStorageError("list_stock", "在庫一覧取得に失敗しました", err)
	}

	snapshots := make([]StockSnapshot, 0, len(records))
	for _, record := range records {
		snapshots = append(snapshots, StockSnapshot{
			LocationID: record.LocationID,
			Quantity:   record.Quantity,
			Status:     record.Status,
		})
	}

	return snapshots, nil
}

// GetDemandLineProgress returns the progress of every line on a document
// ドキュメント全明細の進捗を返す
func (e *Engine) GetDemandLineProgress(ctx context.Context, companyID, documentID string) ([]LineProgress, error) {
	document, err := e.store.GetDocument(ctx, companyID, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, NewStorageError("get_document", "ドキュメント取得に失敗しました", err)
	}
	if document.IsDeleted {
		return nil, ErrDocumentNotFound
	}

	lines, err := e.store.ListDemandLines(ctx, companyID, documentID)
	if err != nil {
		return nil, NewStorageError("list_demand_lines", "明細一覧取得に失敗しました", err)
	}

	progress := make([]LineProgress, 0, len(lines))
	for _, line := range lines {
		progress = append(progress, LineProgress{
			LineID:            line.ID,
			ItemID:            line.ItemID,
			RequiredQuantity:  line.RequiredQuantity,
			FulfilledQuantity: line.FulfilledQuantity,
			RemainingQuantity: line.RemainingQuantity(),
			Status:            line.Status,
		})
	}

	return progress, nil
}

// GetLocationUtilization returns a location's capacity usage
// ロケーションの収容量使用状況を返す
func (e *Engine) GetLocationUtilization(ctx context.Context, companyID, locationID string) (*LocationUtilization, error) {
	location, err := e.store.GetLocation(ctx, companyID, locationID)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, NewStorageError("get_location", "ロケーション取得に失敗しました", err)
	}

	return &LocationUtilization{
		LocationID:      location.ID,
		Category:        location.Category,
		MaxCapacity:     location.MaxCapacity,
		CurrentCapacity: location.CurrentCapacity,
	}, nil
}

// GetMovementHistory returns recent movements of an item
// 商品の移動履歴を返す
func (e *Engine) GetMovementHistory(ctx context.Context, companyID, itemID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100 // デフォルト値
	}

	movements, err := e.store.ListMovementsByItem(ctx, companyID, itemID, limit)
	if err != nil {
		return nil, NewStorageError("list_movements", "移動履歴取得に失敗しました", err)
	}

	return movements, nil
}
