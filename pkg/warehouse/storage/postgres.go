// Package storage provides PostgreSQL persistence for the warehouse engine
// 倉庫エンジンのPostgreSQL永続化層
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/soukoWMS/pkg/warehouse"
)

// PostgreSQLStore implements the Store interface using PostgreSQL
// PostgreSQLを使用したStoreインターフェースの実装
type PostgreSQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ warehouse.Store = (*PostgreSQLStore)(nil)

// NewPostgreSQLStore creates a new PostgreSQL store instance
// 新しいPostgreSQLストアインスタンスを作成
func NewPostgreSQLStore(dsn string, logger *zap.Logger) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgreSQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// WithinTx runs fn inside a single database transaction. Serialization
// failures and deadlocks surface as ErrConcurrencyConflict so the caller can
// safely retry the identical request.
// 単一トランザクション内でfnを実行。直列化失敗とデッドロックはErrConcurrencyConflictに変換
func (s *PostgreSQLStore) WithinTx(ctx context.Context, fn func(tx warehouse.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rerr := sqlTx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				s.logger.Warn("ロールバックに失敗しました", zap.Error(rerr))
			}
		}
	}()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return mapConcurrencyError(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return mapConcurrencyError(fmt.Errorf("コミットに失敗しました: %w", err))
	}
	committed = true

	return nil
}

// mapConcurrencyError converts PostgreSQL serialization failures (40001) and
// deadlocks (40P01) into ErrConcurrencyConflict
// PostgreSQLの直列化失敗(40001)とデッドロック(40P01)をErrConcurrencyConflictへ変換
func mapConcurrencyError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return warehouse.ErrConcurrencyConflict
		}
	}
	return err
}

// GetItem retrieves an item by ID for a company
// 会社の商品をIDで取得
func (s *PostgreSQLStore) GetItem(ctx context.Context, companyID, itemID string) (*warehouse.Item, error) {
	return scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, unit_of_measure, standard_price, created_at, updated_at
		FROM items
		WHERE company_id = $1 AND id = $2`, companyID, itemID))
}

// GetLocation retrieves a location by ID for a company
// 会社のロケーションをIDで取得
func (s *PostgreSQLStore) GetLocation(ctx context.Context, companyID, locationID string) (*warehouse.Location, error) {
	return scanLocation(s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, category, max_capacity, current_capacity, is_active, created_at, updated_at
		FROM locations
		WHERE company_id = $1 AND id = $2`, companyID, locationID))
}

// GetDocument retrieves an ASN or picking document by ID for a company
// 会社のASN/ピッキングドキュメントをIDで取得
func (s *PostgreSQLStore) GetDocument(ctx context.Context, companyID, documentID string) (*warehouse.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, company_id, kind, upstream_order_id, holding_location_id, status, is_deleted, created_at, updated_at
		FROM documents
		WHERE company_id = $1 AND id = $2`, companyID, documentID))
}

// ListStockByItem retrieves all inventory records of an item across locations
// 商品の全ロケーション在庫記録を取得
func (s *PostgreSQLStore) ListStockByItem(ctx context.Context, companyID, itemID string) ([]warehouse.InventoryRecord, error) {
	query := `
		SELECT company_id, item_id, location_id, quantity, status, last_cost_price, source_reference, created_at, updated_at, updated_by
		FROM inventory
		WHERE company_id = $1 AND item_id = $2
		ORDER BY location_id`

	rows, err := s.db.QueryContext(ctx, query, companyID, itemID)
	if err != nil {
		return nil, fmt.Errorf("在庫一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []warehouse.InventoryRecord
	for rows.Next() {
		var record warehouse.InventoryRecord
		err := rows.Scan(
			&record.CompanyID,
			&record.ItemID,
			&record.LocationID,
			&record.Quantity,
			&record.Status,
			&record.LastCostPrice,
			&record.SourceReference,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.UpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("在庫スキャンに失敗しました: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ListDemandLines retrieves all demand lines of a document
// ドキュメントの全明細行を取得
func (s *PostgreSQLStore) ListDemandLines(ctx context.Context, companyID, documentID string) ([]warehouse.DemandLine, error) {
	query := `
		SELECT id, company_id, document_id, kind, item_id, required_quantity, fulfilled_quantity, status, is_deleted, created_at, updated_at
		FROM demand_lines
		WHERE company_id = $1 AND document_id = $2 AND is_deleted = false
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, companyID, documentID)
	if err != nil {
		return nil, fmt.Errorf("明細一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var lines []warehouse.DemandLine
	for rows.Next() {
		var line warehouse.DemandLine
		err := rows.Scan(
			&line.ID,
			&line.CompanyID,
			&line.DocumentID,
			&line.Kind,
			&line.ItemID,
			&line.RequiredQuantity,
			&line.FulfilledQuantity,
			&line.Status,
			&line.IsDeleted,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("明細スキャンに失敗しました: %w", err)
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// ListMovementsByItem retrieves movement history for an item
// 商品の移動履歴を取得
func (s *PostgreSQLStore) ListMovementsByItem(ctx context.Context, companyID, itemID string, limit int) ([]warehouse.Movement, error) {
	query := `
		SELECT id, company_id, type, item_id, from_location_id, to_location_id, quantity, unit_cost, document_id, demand_line_id, created_at, created_by
		FROM movements
		WHERE company_id = $1 AND item_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, companyID, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("移動履歴取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var movements []warehouse.Movement
	for rows.Next() {
		var m warehouse.Movement
		err := rows.Scan(
			&m.ID,
			&m.CompanyID,
			&m.Type,
			&m.ItemID,
			&m.FromLocationID,
			&m.ToLocationID,
			&m.Quantity,
			&m.UnitCost,
			&m.DocumentID,
			&m.DemandLineID,
			&m.CreatedAt,
			&m.CreatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("移動記録スキャンに失敗しました: %w", err)
		}
		movements = append(movements, m)
	}

	return movements, rows.Err()
}

// Ping checks database connectivity
// データベース接続をチェック
func (s *PostgreSQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying connection pool for instrumentation
// 計装用に内部のコネクションプールを公開
func (s *PostgreSQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

// pgTx is the transaction-scoped view over an open *sql.Tx
// オープン中の*sql.Txに対するトランザクションスコープのビュー
type pgTx struct {
	tx *sql.Tx
}

var _ warehouse.Tx = (*pgTx)(nil)

// GetDocument retrieves a document inside the transaction
// トランザクション内でドキュメントを取得
func (t *pgTx) GetDocument(ctx context.Context, companyID, documentID string) (*warehouse.Document, error) {
	return scanDocument(t.tx.QueryRowContext(ctx, `
		SELECT id, company_id, kind, upstream_order_id, holding_location_id, status, is_deleted, created_at, updated_at
		FROM documents
		WHERE company_id = $1 AND id = $2`, companyID, documentID))
}

// GetDemandLineForUpdate retrieves a demand line with a row lock
// 明細行を行ロック付きで取得
func (t *pgTx) GetDemandLineForUpdate(ctx context.Context, companyID, lineID string) (*warehouse.DemandLine, error) {
	query := `
		SELECT id, company_id, document_id, kind, item_id, required_quantity, fulfilled_quantity, status, is_deleted, created_at, updated_at
		FROM demand_lines
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`

	line := &warehouse.DemandLine{}
	err := t.tx.QueryRowContext(ctx, query, companyID, lineID).Scan(
		&line.ID,
		&line.CompanyID,
		&line.DocumentID,
		&line.Kind,
		&line.ItemID,
		&line.RequiredQuantity,
		&line.FulfilledQuantity,
		&line.Status,
		&line.IsDeleted,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, warehouse.ErrDemandLineNotFound
		}
		return nil, fmt.Errorf("明細行取得に失敗しました: %w", err)
	}

	return line, nil
}

// UpdateDemandLine persists the fulfilled quantity and status of a line
// 明細行の充足数量とステータスを保存
func (t *pgTx) UpdateDemandLine(ctx context.Context, line *warehouse.DemandLine) error {
	query := `
		UPDATE demand_lines
		SET fulfilled_quantity = $3, status = $4, updated_at = $5
		WHERE company_id = $1 AND id = $2`

	result, err := t.tx.ExecContext(ctx, query,
		line.CompanyID,
		line.ID,
		line.FulfilledQuantity,
		line.Status,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("明細行更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return warehouse.ErrDemandLineNotFound
	}

	return nil
}

// CountOpenLines counts the document's lines that are not yet complete
// ドキュメントの未完了明細行数をカウント
func (t *pgTx) CountOpenLines(ctx context.Context, companyID, documentID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM demand_lines
		WHERE company_id = $1 AND document_id = $2 AND is_deleted = false AND status <> $3`

	var count int64
	err := t.tx.QueryRowContext(ctx, query, companyID, documentID, warehouse.LineComplete).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未完了明細数取得に失敗しました: %w", err)
	}

	return count, nil
}

// UpdateDocumentStatus persists a document's derived status
// ドキュメントの導出ステータスを保存
func (t *pgTx) UpdateDocumentStatus(ctx context.Context, companyID, documentID string, status warehouse.DocumentStatus) error {
	query := `
		UPDATE documents
		SET status = $3, updated_at = $4
		WHERE company_id = $1 AND id = $2`

	result, err := t.tx.ExecContext(ctx, query, companyID, documentID, status, time.Now())
	if err != nil {
		return fmt.Errorf("ドキュメント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return warehouse.ErrDocumentNotFound
	}

	return nil
}

// UpstreamOrderExists reports whether the referenced purchase or sales order
// exists for the company. ASN documents reference purchase orders, picking
// documents reference sales orders.
// 参照された発注書/受注が会社に存在するかを確認
func (t *pgTx) UpstreamOrderExists(ctx context.Context, companyID string, kind warehouse.DocumentKind, orderID string) (bool, error) {
	table := "purchase_orders"
	if kind == warehouse.DocumentPicking {
		table = "sales_orders"
	}

	// テーブル名は2値のどちらかに固定されるためプレースホルダ不要
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE company_id = $1 AND id = $2 AND is_deleted = false)`, table)

	var exists bool
	if err := t.tx.QueryRowContext(ctx, query, companyID, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("上流ドキュメント確認に失敗しました: %w", err)
	}

	return exists, nil
}

// GetItem retrieves an item inside the transaction
// トランザクション内で商品を取得
func (t *pgTx) GetItem(ctx context.Context, companyID, itemID string) (*warehouse.Item, error) {
	return scanItem(t.tx.QueryRowContext(ctx, `
		SELECT id, company_id, name, unit_of_measure, standard_price, created_at, updated_at
		FROM items
		WHERE company_id = $1 AND id = $2`, companyID, itemID))
}

// GetLocationForUpdate retrieves a location with a row lock
// ロケーションを行ロック付きで取得
func (t *pgTx) GetLocationForUpdate(ctx context.Context, companyID, locationID string) (*warehouse.Location, error) {
	return scanLocation(t.tx.QueryRowContext(ctx, `
		SELECT id, company_id, name, category, max_capacity, current_capacity, is_active, created_at, updated_at
		FROM locations
		WHERE company_id = $1 AND id = $2
		FOR UPDATE`, companyID, locationID))
}

// UpdateLocationCapacity persists a location's current capacity usage
// ロケーションの現在使用量を保存
func (t *pgTx) UpdateLocationCapacity(ctx context.Context, companyID, locationID string, currentCapacity int64) error {
	query := `
		UPDATE locations
		SET current_capacity = $3, updated_at = $4
		WHERE company_id = $1 AND id = $2`

	result, err := t.tx.ExecContext(ctx, query, companyID, locationID, currentCapacity, time.Now())
	if err != nil {
		return fmt.Errorf("ロケーション更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return warehouse.ErrLocationNotFound
	}

	return nil
}

// GetStockForUpdate retrieves an inventory record with a row lock
// 在庫記録を行ロック付きで取得
func (t *pgTx) GetStockForUpdate(ctx context.Context, companyID, itemID, locationID string) (*warehouse.InventoryRecord, error) {
	query := `
		SELECT company_id, item_id, location_id, quantity, status, last_cost_price, source_reference, created_at, updated_at, updated_by
		FROM inventory
		WHERE company_id = $1 AND item_id = $2 AND location_id = $3
		FOR UPDATE`

	record := &warehouse.InventoryRecord{}
	err := t.tx.QueryRowContext(ctx, query, companyID, itemID, locationID).Scan(
		&record.CompanyID,
		&record.ItemID,
		&record.LocationID,
		&record.Quantity,
		&record.Status,
		&record.LastCostPrice,
		&record.SourceReference,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.UpdatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, warehouse.ErrStockNotFound
		}
		return nil, fmt.Errorf("在庫取得に失敗しました: %w", err)
	}

	return record, nil
}

// CreateStock creates a new inventory record
// 新しい在庫記録を作成
func (t *pgTx) CreateStock(ctx context.Context, record *warehouse.InventoryRecord) error {
	query := `
		INSERT INTO inventory (company_id, item_id, location_id, quantity, status, last_cost_price, source_reference, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := t.tx.ExecContext(ctx, query,
		record.CompanyID,
		record.ItemID,
		record.LocationID,
		record.Quantity,
		record.Status,
		record.LastCostPrice,
		record.SourceReference,
		record.CreatedAt,
		record.UpdatedAt,
		record.UpdatedBy,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("在庫記録は既に存在します")
		}
		return fmt.Errorf("在庫記録作成に失敗しました: %w", err)
	}

	return nil
}

// UpdateStock updates an existing inventory record
// 既存の在庫記録を更新
func (t *pgTx) UpdateStock(ctx context.Context, record *warehouse.InventoryRecord) error {
	query := `
		UPDATE inventory
		SET quantity = $4, status = $5, last_cost_price = $6, source_reference = $7, updated_at = $8, updated_by = $9
		WHERE company_id = $1 AND item_id = $2 AND location_id = $3`

	result, err := t.tx.ExecContext(ctx, query,
		record.CompanyID,
		record.ItemID,
		record.LocationID,
		record.Quantity,
		record.Status,
		record.LastCostPrice,
		record.SourceReference,
		time.Now(),
		record.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("在庫記録更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return warehouse.ErrStockNotFound
	}

	return nil
}

// CreateMovement appends a movement journal entry
// 移動ジャーナル記録を追記
func (t *pgTx) CreateMovement(ctx context.Context, movement *warehouse.Movement) error {
	query := `
		INSERT INTO movements (id, company_id, type, item_id, from_location_id, to_location_id, quantity, unit_cost, document_id, demand_line_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := t.tx.ExecContext(ctx, query,
		movement.ID,
		movement.CompanyID,
		movement.Type,
		movement.ItemID,
		movement.FromLocationID,
		movement.ToLocationID,
		movement.Quantity,
		movement.UnitCost,
		movement.DocumentID,
		movement.DemandLineID,
		movement.CreatedAt,
		movement.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("移動記録作成に失敗しました: %w", err)
	}

	return nil
}

// rowScanner covers *sql.Row for the shared scan helpers
// 共有スキャンヘルパー用に*sql.Rowを抽象化
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*warehouse.Item, error) {
	item := &warehouse.Item{}
	err := row.Scan(
		&item.ID,
		&item.CompanyID,
		&item.Name,
		&item.UnitOfMeasure,
		&item.StandardPrice,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, warehouse.ErrItemNotFound
		}
		return nil, fmt.Errorf("商品取得に失敗しました: %w", err)
	}
	return item, nil
}

func scanLocation(row rowScanner) (*warehouse.Location, error) {
	location := &warehouse.Location{}
	err := row.Scan(
		&location.ID,
		&location.CompanyID,
		&location.Name,
		&location.Category,
		&location.MaxCapacity,
		&location.CurrentCapacity,
		&location.IsActive,
		&location.CreatedAt,
		&location.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, warehouse.ErrLocationNotFound
		}
		return nil, fmt.Errorf("ロケーション取得に失敗しました: %w", err)
	}
	return location, nil
}

func scanDocument(row rowScanner) (*warehouse.Document, error) {
	document := &warehouse.Document{}
	err := row.Scan(
		&document.ID,
		&document.CompanyID,
		&document.Kind,
		&document.UpstreamOrderID,
		&document.HoldingLocationID,
		&document.Status,
		&document.IsDeleted,
		&document.CreatedAt,
		&document.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, warehouse.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("ドキュメント取得に失敗しました: %w", err)
	}
	return document, nil
}
