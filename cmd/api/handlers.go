package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/soukoWMS/pkg/warehouse"
)

// Handlers holds HTTP handlers for the warehouse API
// 倉庫API用のHTTPハンドラーを保持
type Handlers struct {
	engine        warehouse.TransferEngine
	store         warehouse.Store
	logger        *zap.Logger
	movementLimit int // 移動履歴取得のデフォルト件数
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(engine warehouse.TransferEngine, store warehouse.Store, logger *zap.Logger, movementLimit int) *Handlers {
	return &Handlers{
		engine:        engine,
		store:         store,
		logger:        logger,
		movementLimit: movementLimit,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PutawayRequest represents a putaway transfer request
// 入庫格納リクエストを表現
type PutawayRequest struct {
	ASNID          string `json:"asn_id"`
	ASNLineID      string `json:"asn_line_id"`
	ItemID         string `json:"item_id"`
	DestLocationID string `json:"dest_location_id"`
	Quantity       int64  `json:"quantity"`
}

// PickingItemRequest represents a picking transfer request
// ピッキングリクエストを表現
type PickingItemRequest struct {
	PickingID        string `json:"picking_id"`
	PickingLineID    string `json:"picking_line_id"`
	SourceLocationID string `json:"source_location_id"`
	Quantity         int64  `json:"quantity"`
}

// requestIdentity extracts the company and user from request headers
// リクエストヘッダーから会社とユーザーを抽出
func (h *Handlers) requestIdentity(w http.ResponseWriter, r *http.Request) (companyID, userID string, ok bool) {
	companyID = r.Header.Get("X-Company-ID")
	userID = r.Header.Get("X-User-ID")

	if err := warehouse.ValidateCompanyID(companyID); err != nil {
		h.sendError(w, http.StatusBadRequest, "X-Company-IDヘッダーが不正です")
		return "", "", false
	}
	if err := warehouse.ValidateUserID(userID); err != nil {
		h.sendError(w, http.StatusBadRequest, "X-User-IDヘッダーが不正です")
		return "", "", false
	}

	return companyID, userID, true
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.sendError(w, http.StatusServiceUnavailable, "データベース接続に問題があります")
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "soukoWMS",
	})
}

// Putaway handles putaway transfer requests
// 入庫格納リクエストを処理
func (h *Handlers) Putaway(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req PutawayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.engine.ProcessPutaway(r.Context(), companyID, userID,
		req.ASNID, req.ASNLineID, req.ItemID, req.DestLocationID, req.Quantity)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// PickingItem handles picking transfer requests
// ピッキングリクエストを処理
func (h *Handlers) PickingItem(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req PickingItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.engine.ProcessPickingItem(r.Context(), companyID, userID,
		req.PickingID, req.PickingLineID, req.SourceLocationID, req.Quantity)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// GetInventory handles inventory snapshot requests
// 在庫スナップショット取得リクエストを処理
func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	itemID := vars["itemId"]

	snapshots, err := h.engine.GetInventorySnapshot(r.Context(), companyID, itemID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, snapshots)
}

// GetDocumentProgress handles demand line progress requests
// 明細進捗取得リクエストを処理
func (h *Handlers) GetDocumentProgress(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	documentID := vars["documentId"]

	progress, err := h.engine.GetDemandLineProgress(r.Context(), companyID, documentID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, progress)
}

// GetLocationUtilization handles location utilization requests
// ロケーション使用状況取得リクエストを処理
func (h *Handlers) GetLocationUtilization(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	locationID := vars["locationId"]

	utilization, err := h.engine.GetLocationUtilization(r.Context(), companyID, locationID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, utilization)
}

// GetMovements handles movement history requests
// 移動履歴取得リクエストを処理
func (h *Handlers) GetMovements(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	itemID := vars["itemId"]

	// limitパラメータの取得
	limit := h.movementLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	movements, err := h.engine.GetMovementHistory(r.Context(), companyID, itemID, limit)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendSuccess(w, movements)
}

// ヘルパーメソッド

// sendDomainError maps domain errors to HTTP status codes
// ドメインエラーをHTTPステータスコードに変換
func (h *Handlers) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, warehouse.ErrItemNotFound),
		errors.Is(err, warehouse.ErrLocationNotFound),
		errors.Is(err, warehouse.ErrDocumentNotFound),
		errors.Is(err, warehouse.ErrDemandLineNotFound),
		errors.Is(err, warehouse.ErrStockNotFound):
		h.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, warehouse.ErrOwnershipMismatch),
		errors.Is(err, warehouse.ErrOverFulfillment),
		errors.Is(err, warehouse.ErrCapacityExceeded),
		errors.Is(err, warehouse.ErrInsufficientStock),
		errors.Is(err, warehouse.ErrInvalidLocation),
		errors.Is(err, warehouse.ErrUpstreamOrderNotFound):
		h.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, warehouse.ErrConcurrencyConflict):
		// 再実行で回復可能
		h.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, warehouse.ErrInvalidQuantity), isValidationError(err):
		h.sendError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("内部エラー", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "内部エラーが発生しました")
	}
}

func isValidationError(err error) bool {
	var verr *warehouse.ValidationError
	return errors.As(err, &verr)
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := APIResponse{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("エラーレスポンス送信に失敗しました", zap.Error(err))
	}
}
