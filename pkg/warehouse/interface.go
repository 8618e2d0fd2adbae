package warehouse

import (
	"context"
)

// TransferEngine defines the operations exposed to the workflow layer
// ワークフロー層へ公開する操作を定義
type TransferEngine interface {
	// 入庫格納 - Putaway (holding -> storage)
	ProcessPutaway(ctx context.Context, companyID, userID, asnID, asnLineID, itemID, destLocationID string, quantity int64) (*TransferResult, error)
	// ピッキング - Picking (storage -> holding)
	ProcessPickingItem(ctx context.Context, companyID, userID, pickingID, pickingLineID, sourceLocationID string, quantity int64) (*TransferResult, error)

	// 診断ビュー - Read-only diagnostic views
	GetInventorySnapshot(ctx context.Context, companyID, itemID string) ([]StockSnapshot, error)
	GetDemandLineProgress(ctx context.Context, companyID, documentID string) ([]LineProgress, error)
	GetLocationUtilization(ctx context.Context, companyID, locationID string) (*LocationUtilization, error)
	GetMovementHistory(ctx context.Context, companyID, itemID string, limit int) ([]Movement, error)
}

// Store defines the interface for the data persistence layer.
// Mutations only happen through WithinTx; the plain read methods serve
// diagnostic views and run outside any transfer transaction.
// データ永続化層のインターフェース。変更は必ずWithinTxを経由する
type Store interface {
	// WithinTx runs fn inside a single database transaction. A nil return
	// commits, any error rolls every change back.
	// 単一トランザクション内でfnを実行。nilでコミット、エラーで全変更をロールバック
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Read-only lookups
	GetItem(ctx context.Context, companyID, itemID string) (*Item, error)
	GetLocation(ctx context.Context, companyID, locationID string) (*Location, error)
	GetDocument(ctx context.Context, companyID, documentID string) (*Document, error)
	ListStockByItem(ctx context.Context, companyID, itemID string) ([]InventoryRecord, error)
	ListDemandLines(ctx context.Context, companyID, documentID string) ([]DemandLine, error)
	ListMovementsByItem(ctx context.Context, companyID, itemID string, limit int) ([]Movement, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transaction-scoped view of the store. Every ForUpdate read
// acquires a row lock; validation inside a transfer must use these reads,
// never state loaded before the transaction began.
// トランザクションスコープのストアビュー。ForUpdate読み取りは行ロックを取得する
type Tx interface {
	// Documents and demand lines
	GetDocument(ctx context.Context, companyID, documentID string) (*Document, error)
	GetDemandLineForUpdate(ctx context.Context, companyID, lineID string) (*DemandLine, error)
	UpdateDemandLine(ctx context.Context, line *DemandLine) error
	CountOpenLines(ctx context.Context, companyID, documentID string) (int64, error)
	UpdateDocumentStatus(ctx context.Context, companyID, documentID string, status DocumentStatus) error
	UpstreamOrderExists(ctx context.Context, companyID string, kind DocumentKind, orderID string) (bool, error)

	// Reference data
	GetItem(ctx context.Context, companyID, itemID string) (*Item, error)

	// Locations
	GetLocationForUpdate(ctx context.Context, companyID, locationID string) (*Location, error)
	UpdateLocationCapacity(ctx context.Context, companyID, locationID string, currentCapacity int64) error

	// Inventory records
	GetStockForUpdate(ctx context.Context, companyID, itemID, locationID string) (*InventoryRecord, error)
	CreateStock(ctx context.Context, record *InventoryRecord) error
	UpdateStock(ctx context.Context, record *InventoryRecord) error

	// Movement journal
	CreateMovement(ctx context.Context, movement *Movement) error
}
