// Package warehouse provides the inventory movement and reservation engine
// 在庫移動と引当を担う倉庫管理コアパッケージ
package warehouse

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents a product or SKU handled by the warehouse
// 倉庫で扱う商品またはSKUを表現
type Item struct {
	ID            string          `json:"id" db:"id"`                         // 商品ID
	CompanyID     string          `json:"company_id" db:"company_id"`         // 会社ID
	Name          string          `json:"name" db:"name"`                     // 商品名
	UnitOfMeasure string          `json:"unit_of_measure" db:"unit_of_measure"` // 単位
	StandardPrice decimal.Decimal `json:"standard_price" db:"standard_price"` // 標準単価
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`         // 作成日時
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`         // 更新日時
}

// LocationCategory defines the kind of a warehouse location
// ロケーションの種別を定義
type LocationCategory string

const (
	LocationStorage LocationCategory = "storage" // 保管ロケーション
	LocationHolding LocationCategory = "holding" // 一時保管ロケーション
)

// Location represents a physical storage or holding place
// 保管場所または一時保管場所を表現
type Location struct {
	ID              string           `json:"id" db:"id"`                             // ロケーションID
	CompanyID       string           `json:"company_id" db:"company_id"`             // 会社ID
	Name            string           `json:"name" db:"name"`                         // ロケーション名
	Category        LocationCategory `json:"category" db:"category"`                 // 種別
	MaxCapacity     int64            `json:"max_capacity" db:"max_capacity"`         // 最大収容量
	CurrentCapacity int64            `json:"current_capacity" db:"current_capacity"` // 現在使用量（保有在庫数量の合計キャッシュ）
	IsActive        bool             `json:"is_active" db:"is_active"`               // アクティブ状態
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`             // 作成日時
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`             // 更新日時
}

// AvailableCapacity returns the remaining capacity of the location
// ロケーションの残り収容量を返す
func (l *Location) AvailableCapacity() int64 {
	return l.MaxCapacity - l.CurrentCapacity
}

// StockStatus defines the derived status of an inventory record
// 在庫記録の派生ステータスを定義
type StockStatus string

const (
	StatusAvailable StockStatus = "available" // 利用可能
	StatusReserved  StockStatus = "reserved"  // 引当済み
	StatusEmpty     StockStatus = "empty"     // 在庫なし
)

// InventoryRecord represents current stock of an item at a location
// 特定ロケーションにおける商品の現在在庫を表現
// 不変条件: Quantity >= 0、Quantity == 0 ⇔ Status == StatusEmpty
type InventoryRecord struct {
	CompanyID       string          `json:"company_id" db:"company_id"`             // 会社ID
	ItemID          string          `json:"item_id" db:"item_id"`                   // 商品ID
	LocationID      string          `json:"location_id" db:"location_id"`           // ロケーションID
	Quantity        int64           `json:"quantity" db:"quantity"`                 // 在庫数量
	Status          StockStatus     `json:"status" db:"status"`                     // ステータス（数量から導出）
	LastCostPrice   decimal.Decimal `json:"last_cost_price" db:"last_cost_price"`   // 加重平均原価
	SourceReference string          `json:"source_reference" db:"source_reference"` // 入庫元参照
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`             // 作成日時
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`             // 更新日時
	UpdatedBy       string          `json:"updated_by" db:"updated_by"`             // 更新者
}

// DocumentKind identifies the workflow a document belongs to
// ドキュメントが属するワークフローを識別
type DocumentKind string

const (
	DocumentASN     DocumentKind = "asn"     // 入荷予定（Advanced Shipping Notice）
	DocumentPicking DocumentKind = "picking" // ピッキング指示
)

// DocumentStatus defines the derived status of an ASN or picking document
// ASN/ピッキングドキュメントの派生ステータスを定義
type DocumentStatus string

const (
	DocumentOpen      DocumentStatus = "open"      // 未着手
	DocumentPartial   DocumentStatus = "partial"   // 一部完了
	DocumentCompleted DocumentStatus = "completed" // 全明細完了
)

// Document represents an ASN (inbound) or Picking (outbound) document
// ASN（入荷）またはピッキング（出荷）ドキュメントを表現
// ASNは発注書（PO）、ピッキングは受注（SO）をひとつだけ参照する
type Document struct {
	ID                string         `json:"id" db:"id"`                                 // ドキュメントID
	CompanyID         string         `json:"company_id" db:"company_id"`                 // 会社ID
	Kind              DocumentKind   `json:"kind" db:"kind"`                             // 種別
	UpstreamOrderID   string         `json:"upstream_order_id" db:"upstream_order_id"`   // 上流ドキュメントID（PO/SO）
	HoldingLocationID string         `json:"holding_location_id" db:"holding_location_id"` // 一時保管ロケーションID
	Status            DocumentStatus `json:"status" db:"status"`                         // ステータス
	IsDeleted         bool           `json:"is_deleted" db:"is_deleted"`                 // 論理削除フラグ
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`                 // 作成日時
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`                 // 更新日時
}

// DemandLineStatus defines the derived status of a demand line
// 明細行の派生ステータスを定義
type DemandLineStatus string

const (
	LinePending  DemandLineStatus = "pending"  // 未処理
	LinePartial  DemandLineStatus = "partial"  // 一部充足
	LineComplete DemandLineStatus = "complete" // 充足完了
)

// DemandLine is a single item line on an ASN or picking document
// ASN/ピッキングドキュメント上の単一商品明細行
// 不変条件: 0 <= FulfilledQuantity <= RequiredQuantity
type DemandLine struct {
	ID                string           `json:"id" db:"id"`                               // 明細行ID
	CompanyID         string           `json:"company_id" db:"company_id"`               // 会社ID
	DocumentID        string           `json:"document_id" db:"document_id"`             // 親ドキュメントID
	Kind              DocumentKind     `json:"kind" db:"kind"`                           // 種別
	ItemID            string           `json:"item_id" db:"item_id"`                     // 商品ID
	RequiredQuantity  int64            `json:"required_quantity" db:"required_quantity"`   // 必要数量
	FulfilledQuantity int64            `json:"fulfilled_quantity" db:"fulfilled_quantity"` // 充足済み数量（累計）
	Status            DemandLineStatus `json:"status" db:"status"`                       // ステータス（数量から導出）
	IsDeleted         bool             `json:"is_deleted" db:"is_deleted"`               // 論理削除フラグ
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`               // 作成日時
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`               // 更新日時
}

// RemainingQuantity returns the quantity still to fulfil
// 残数量を返す（常に再計算し、独立して保存しない）
func (d *DemandLine) RemainingQuantity() int64 {
	return d.RequiredQuantity - d.FulfilledQuantity
}

// MovementType defines the direction of an executed transfer
// 実行された移動の方向を定義
type MovementType string

const (
	MovementPutaway MovementType = "putaway" // 入庫格納（一時保管→保管）
	MovementPick    MovementType = "pick"    // ピッキング（保管→一時保管）
)

// Movement is an append-only journal entry for an executed transfer
// 実行された移動の追記専用ジャーナル記録
type Movement struct {
	ID             string          `json:"id" db:"id"`                           // 移動ID
	CompanyID      string          `json:"company_id" db:"company_id"`           // 会社ID
	Type           MovementType    `json:"type" db:"type"`                       // 移動種別
	ItemID         string          `json:"item_id" db:"item_id"`                 // 商品ID
	FromLocationID string          `json:"from_location_id" db:"from_location_id"` // 移動元ロケーション
	ToLocationID   string          `json:"to_location_id" db:"to_location_id"`   // 移動先ロケーション
	Quantity       int64           `json:"quantity" db:"quantity"`               // 数量
	UnitCost       decimal.Decimal `json:"unit_cost" db:"unit_cost"`             // 単価
	DocumentID     string          `json:"document_id" db:"document_id"`         // ドキュメントID
	DemandLineID   string          `json:"demand_line_id" db:"demand_line_id"`   // 明細行ID
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`           // 作成日時
	CreatedBy      string          `json:"created_by" db:"created_by"`           // 作成者
}

// TransferResult is returned to the caller after a successful transfer
// 移動成功時に呼び出し元へ返す結果
type TransferResult struct {
	TransferID        string `json:"transfer_id"`        // 移動ID
	DemandLineID      string `json:"demand_line_id"`     // 明細行ID
	FulfilledQuantity int64  `json:"fulfilled_quantity"` // 充足済み数量（累計）
	RemainingQuantity int64  `json:"remaining_quantity"` // 残数量
	LineCompleted     bool   `json:"line_completed"`     // 明細行完了フラグ
	DocumentCompleted bool   `json:"document_completed"` // ドキュメント完了フラグ
}

// StockSnapshot is a read-only diagnostic view of one inventory record
// 在庫記録の読み取り専用診断ビュー
type StockSnapshot struct {
	LocationID string      `json:"location_id"` // ロケーションID
	Quantity   int64       `json:"quantity"`    // 数量
	Status     StockStatus `json:"status"`      // ステータス
}

// LineProgress is a read-only diagnostic view of one demand line
// 明細行の読み取り専用診断ビュー
type LineProgress struct {
	LineID            string           `json:"line_id"`            // 明細行ID
	ItemID            string           `json:"item_id"`            // 商品ID
	RequiredQuantity  int64            `json:"required_quantity"`  // 必要数量
	FulfilledQuantity int64            `json:"fulfilled_quantity"` // 充足済み数量
	RemainingQuantity int64            `json:"remaining_quantity"` // 残数量
	Status            DemandLineStatus `json:"status"`             // ステータス
}

// LocationUtilization is a read-only view of a location's capacity usage
// ロケーションの収容量使用状況の読み取り専用ビュー
type LocationUtilization struct {
	LocationID      string           `json:"location_id"`      // ロケーションID
	Category        LocationCategory `json:"category"`         // 種別
	MaxCapacity     int64            `json:"max_capacity"`     // 最大収容量
	CurrentCapacity int64            `json:"current_capacity"` // 現在使用量
}

// NewTransferID generates a new transfer ID
// 新しい移動IDを生成
func NewTransferID() string {
	return uuid.New().String()
}

// StatusForQuantity derives the stock status from a resulting quantity
// 結果数量から在庫ステータスを導出（数量とステータスの乖離を防ぐ唯一の経路）
func StatusForQuantity(quantity int64) StockStatus {
	if quantity == 0 {
		return StatusEmpty
	}
	return StatusAvailable
}

// StatusForFulfillment derives the demand line status from its counters
// 充足カウンタから明細行ステータスを導出
func StatusForFulfillment(fulfilled, required int64) DemandLineStatus {
	switch {
	case fulfilled == 0:
		return LinePending
	case fulfilled < required:
		return LinePartial
	default:
		return LineComplete
	}
}
