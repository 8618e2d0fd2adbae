package warehouse

import (
	"errors"
	"fmt"
)

// Common warehouse errors
// 共通の倉庫エラー定義

var (
	// ErrInvalidQuantity is returned when a non-positive quantity is requested
	// 数量が正の値でない場合のエラー
	ErrInvalidQuantity = errors.New("数量は正の値である必要があります")

	// ErrItemNotFound is returned when an item doesn't exist for the company
	// 商品が存在しない場合のエラー
	ErrItemNotFound = errors.New("商品が見つかりません")

	// ErrLocationNotFound is returned when a location doesn't exist for the company
	// ロケーションが存在しない場合のエラー
	ErrLocationNotFound = errors.New("ロケーションが見つかりません")

	// ErrDocumentNotFound is returned when an ASN or picking document doesn't exist
	// ドキュメントが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("ドキュメントが見つかりません")

	// ErrDemandLineNotFound is returned when a demand line doesn't exist
	// 明細行が存在しない場合のエラー
	ErrDemandLineNotFound = errors.New("明細行が見つかりません")

	// ErrUpstreamOrderNotFound is returned when the referenced PO/SO doesn't exist
	// 上流ドキュメント（発注書/受注）が存在しない場合のエラー
	ErrUpstreamOrderNotFound = errors.New("上流ドキュメントが見つかりません")

	// ErrStockNotFound is returned when an inventory record doesn't exist
	// 在庫記録が存在しない場合のエラー
	ErrStockNotFound = errors.New("在庫記録が見つかりません")

	// ErrOwnershipMismatch is returned when a demand line belongs to a different document
	// 明細行が別のドキュメントに属している場合のエラー（コンタミネーション防止）
	ErrOwnershipMismatch = errors.New("明細行が指定されたドキュメントに属していません")

	// ErrOverFulfillment is returned when a transfer would exceed the required quantity
	// 必要数量を超えて充足しようとした場合のエラー
	ErrOverFulfillment = errors.New("必要数量を超える充足はできません")

	// ErrInvalidLocation is returned when a location is inactive or the wrong category
	// ロケーションが非アクティブまたは種別不正の場合のエラー
	ErrInvalidLocation = errors.New("ロケーションが無効です")

	// ErrCapacityExceeded is returned when a location cannot hold the additional quantity
	// ロケーションの収容量を超過する場合のエラー
	ErrCapacityExceeded = errors.New("ロケーションの収容量を超過します")

	// ErrInsufficientStock is returned when there's not enough stock at the source
	// 移動元の在庫が不足している場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrConcurrencyConflict is returned when a transaction loses a serialization conflict.
	// Retrying the identical request is the recommended recovery.
	// トランザクション直列化競合のエラー。同一リクエストの再実行が推奨される回復手段
	ErrConcurrencyConflict = errors.New("同時実行の競合が発生しました。再実行してください")
)

// ValidationError represents an input validation error with details
// 詳細付き入力バリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// OwnershipError carries the expected and actual parent document of a demand line
// 明細行の期待された親ドキュメントと実際の親ドキュメントを保持
type OwnershipError struct {
	DemandLineID       string `json:"demand_line_id"`       // 明細行ID
	ExpectedDocumentID string `json:"expected_document_id"` // 呼び出し元が指定したドキュメントID
	ActualDocumentID   string `json:"actual_document_id"`   // 明細行が実際に属するドキュメントID
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("所有権不一致 [明細行 %s]: 指定ドキュメント %s に対し実際は %s に属しています",
		e.DemandLineID, e.ExpectedDocumentID, e.ActualDocumentID)
}

func (e *OwnershipError) Unwrap() error { return ErrOwnershipMismatch }

// QuantityError carries requested versus available/remaining quantities
// 要求数量と利用可能/残数量を保持し、操作者が修正できる文脈を提供
type QuantityError struct {
	Kind       error  `json:"-"`          // 基底エラー（ErrInsufficientStock / ErrOverFulfillment / ErrCapacityExceeded）
	ItemID     string `json:"item_id"`    // 商品ID
	LocationID string `json:"location_id"` // ロケーションID（明細行エラーの場合は空）
	Requested  int64  `json:"requested"`  // 要求数量
	Available  int64  `json:"available"`  // 利用可能数量
}

func (e *QuantityError) Error() string {
	switch {
	case e.ItemID != "" && e.LocationID != "":
		return fmt.Sprintf("%v [商品 %s, ロケーション %s]: 要求 %d に対し利用可能 %d",
			e.Kind, e.ItemID, e.LocationID, e.Requested, e.Available)
	case e.LocationID != "":
		// 収容量エラーは商品に依らずロケーション単位
		return fmt.Sprintf("%v [ロケーション %s]: 要求 %d に対し利用可能 %d",
			e.Kind, e.LocationID, e.Requested, e.Available)
	default:
		return fmt.Sprintf("%v [商品 %s]: 要求 %d に対し残 %d", e.Kind, e.ItemID, e.Requested, e.Available)
	}
}

func (e *QuantityError) Unwrap() error { return e.Kind }

// LocationError carries context for an invalid destination or source location
// 無効なロケーションの文脈を保持
type LocationError struct {
	LocationID string           `json:"location_id"` // ロケーションID
	Category   LocationCategory `json:"category"`    // 実際の種別
	Expected   LocationCategory `json:"expected"`    // 期待される種別
	Inactive   bool             `json:"inactive"`    // 非アクティブかどうか
}

func (e *LocationError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("ロケーションが無効です [%s]: 非アクティブです", e.LocationID)
	}
	return fmt.Sprintf("ロケーションが無効です [%s]: 種別 %s が必要ですが %s です",
		e.LocationID, e.Expected, e.Category)
}

func (e *LocationError) Unwrap() error { return ErrInvalidLocation }

// StorageError represents a storage layer failure
// ストレージ層の障害を表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{Operation: operation, Message: message, Cause: cause}
}
