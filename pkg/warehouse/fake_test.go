package warehouse

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// fakeStore はテスト用のインメモリStore実装。WithinTxはスナップショットを
// 取り、エラー時に全変更を巻き戻すことで本物のトランザクションを模倣する
type fakeStore struct {
	state *fakeState

	// エラー注入フラグ
	failCreateMovement bool
}

type fakeState struct {
	items     map[string]Item
	locations map[string]Location
	documents map[string]Document
	lines     map[string]DemandLine
	stocks    map[string]InventoryRecord
	pos       map[string]bool
	sos       map[string]bool
	movements []Movement
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: &fakeState{
			items:     make(map[string]Item),
			locations: make(map[string]Location),
			documents: make(map[string]Document),
			lines:     make(map[string]DemandLine),
			stocks:    make(map[string]InventoryRecord),
			pos:       make(map[string]bool),
			sos:       make(map[string]bool),
		},
	}
}

func fkey(parts ...string) string {
	return strings.Join(parts, "|")
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		items:     make(map[string]Item, len(s.items)),
		locations: make(map[string]Location, len(s.locations)),
		documents: make(map[string]Document, len(s.documents)),
		lines:     make(map[string]DemandLine, len(s.lines)),
		stocks:    make(map[string]InventoryRecord, len(s.stocks)),
		pos:       make(map[string]bool, len(s.pos)),
		sos:       make(map[string]bool, len(s.sos)),
		movements: append([]Movement(nil), s.movements...),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.pos {
		c.pos[k] = v
	}
	for k, v := range s.sos {
		c.sos[k] = v
	}
	return c
}

// セットアップヘルパー

func (s *fakeStore) putItem(item Item) {
	s.state.items[fkey(item.CompanyID, item.ID)] = item
}

func (s *fakeStore) putLocation(location Location) {
	s.state.locations[fkey(location.CompanyID, location.ID)] = location
}

func (s *fakeStore) putDocument(document Document) {
	s.state.documents[fkey(document.CompanyID, document.ID)] = document
}

func (s *fakeStore) putLine(line DemandLine) {
	s.state.lines[fkey(line.CompanyID, line.ID)] = line
}

func (s *fakeStore) putStock(record InventoryRecord) {
	s.state.stocks[fkey(record.CompanyID, record.ItemID, record.LocationID)] = record
}

func (s *fakeStore) putPurchaseOrder(companyID, id string) {
	s.state.pos[fkey(companyID, id)] = true
}

func (s *fakeStore) putSalesOrder(companyID, id string) {
	s.state.sos[fkey(companyID, id)] = true
}

func (s *fakeStore) stock(companyID, itemID, locationID string) (InventoryRecord, bool) {
	r, ok := s.state.stocks[fkey(companyID, itemID, locationID)]
	return r, ok
}

func (s *fakeStore) location(companyID, locationID string) Location {
	return s.state.locations[fkey(companyID, locationID)]
}

func (s *fakeStore) line(companyID, lineID string) DemandLine {
	return s.state.lines[fkey(companyID, lineID)]
}

func (s *fakeStore) document(companyID, documentID string) Document {
	return s.state.documents[fkey(companyID, documentID)]
}

// totalQuantity は全在庫記録の数量合計（保存量の検証用）
func (s *fakeStore) totalQuantity(companyID, itemID string) int64 {
	var total int64
	for _, r := range s.state.stocks {
		if r.CompanyID == companyID && r.ItemID == itemID {
			total += r.Quantity
		}
	}
	return total
}

// Store実装

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	snapshot := s.state.clone()
	if err := fn(&fakeTx{store: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *fakeStore) GetItem(ctx context.Context, companyID, itemID string) (*Item, error) {
	item, ok := s.state.items[fkey(companyID, itemID)]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (s *fakeStore) GetLocation(ctx context.Context, companyID, locationID string) (*Location, error) {
	location, ok := s.state.locations[fkey(companyID, locationID)]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return &location, nil
}

func (s *fakeStore) GetDocument(ctx context.Context, companyID, documentID string) (*Document, error) {
	document, ok := s.state.documents[fkey(companyID, documentID)]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &document, nil
}

func (s *fakeStore) ListStockByItem(ctx context.Context, companyID, itemID string) ([]InventoryRecord, error) {
	var records []InventoryRecord
	for _, r := range s.state.stocks {
		if r.CompanyID == companyID && r.ItemID == itemID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].LocationID < records[j].LocationID })
	return records, nil
}

func (s *fakeStore) ListDemandLines(ctx context.Context, companyID, documentID string) ([]DemandLine, error) {
	var lines []DemandLine
	for _, l := range s.state.lines {
		if l.CompanyID == companyID && l.DocumentID == documentID && !l.IsDeleted {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (s *fakeStore) ListMovementsByItem(ctx context.Context, companyID, itemID string, limit int) ([]Movement, error) {
	var movements []Movement
	for i := len(s.state.movements) - 1; i >= 0 && len(movements) < limit; i-- {
		m := s.state.movements[i]
		if m.CompanyID == companyID && m.ItemID == itemID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }

// fakeTx はストア状態を直接操作するトランザクションビュー。
// 読み取りはコピーを返し、Update系で書き戻す
type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) GetDocument(ctx context.Context, companyID, documentID string) (*Document, error) {
	return t.store.GetDocument(ctx, companyID, documentID)
}

func (t *fakeTx) GetDemandLineForUpdate(ctx context.Context, companyID, lineID string) (*DemandLine, error) {
	line, ok := t.store.state.lines[fkey(companyID, lineID)]
	if !ok {
		return nil, ErrDemandLineNotFound
	}
	return &line, nil
}

func (t *fakeTx) UpdateDemandLine(ctx context.Context, line *DemandLine) error {
	key := fkey(line.CompanyID, line.ID)
	if _, ok := t.store.state.lines[key]; !ok {
		return ErrDemandLineNotFound
	}
	t.store.state.lines[key] = *line
	return nil
}

func (t *fakeTx) CountOpenLines(ctx context.Context, companyID, documentID string) (int64, error) {
	var count int64
	for _, l := range t.store.state.lines {
		if l.CompanyID == companyID && l.DocumentID == documentID && !l.IsDeleted && l.Status != LineComplete {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) UpdateDocumentStatus(ctx context.Context, companyID, documentID string, status DocumentStatus) error {
	key := fkey(companyID, documentID)
	document, ok := t.store.state.documents[key]
	if !ok {
		return ErrDocumentNotFound
	}
	document.Status = status
	t.store.state.documents[key] = document
	return nil
}

func (t *fakeTx) UpstreamOrderExists(ctx context.Context, companyID string, kind DocumentKind, orderID string) (bool, error) {
	if kind == DocumentPicking {
		return t.store.state.sos[fkey(companyID, orderID)], nil
	}
	return t.store.state.pos[fkey(companyID, orderID)], nil
}

func (t *fakeTx) GetItem(ctx context.Context, companyID, itemID string) (*Item, error) {
	return t.store.GetItem(ctx, companyID, itemID)
}

func (t *fakeTx) GetLocationForUpdate(ctx context.Context, companyID, locationID string) (*Location, error) {
	location, ok := t.store.state.locations[fkey(companyID, locationID)]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return &location, nil
}

func (t *fakeTx) UpdateLocationCapacity(ctx context.Context, companyID, locationID string, currentCapacity int64) error {
	key := fkey(companyID, locationID)
	location, ok := t.store.state.locations[key]
	if !ok {
		return ErrLocationNotFound
	}
	location.CurrentCapacity = currentCapacity
	t.store.state.locations[key] = location
	return nil
}

func (t *fakeTx) GetStockForUpdate(ctx context.Context, companyID, itemID, locationID string) (*InventoryRecord, error) {
	record, ok := t.store.state.stocks[fkey(companyID, itemID, locationID)]
	if !ok {
		return nil, ErrStockNotFound
	}
	return &record, nil
}

func (t *fakeTx) CreateStock(ctx context.Context, record *InventoryRecord) error {
	key := fkey(record.CompanyID, record.ItemID, record.LocationID)
	if _, ok := t.store.state.stocks[key]; ok {
		return errors.New("在庫記録は既に存在します")
	}
	t.store.state.stocks[key] = *record
	return nil
}

func (t *fakeTx) UpdateStock(ctx context.Context, record *InventoryRecord) error {
	key := fkey(record.CompanyID, record.ItemID, record.LocationID)
	if _, ok := t.store.state.stocks[key]; !ok {
		return ErrStockNotFound
	}
	t.store.state.stocks[key] = *record
	return nil
}

func (t *fakeTx) CreateMovement(ctx context.Context, movement *Movement) error {
	if t.store.failCreateMovement {
		return errors.New("移動記録作成に失敗しました")
	}
	t.store.state.movements = append(t.store.state.movements, *movement)
	return nil
}
