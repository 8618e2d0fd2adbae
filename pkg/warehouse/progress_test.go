package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProgress() (*ProgressTracker, *fakeStore, Tx) {
	store := newFakeStore()
	return NewProgressTracker(zap.NewNop()), store, &fakeTx{store: store}
}

// TestProgressTracker_RecordFulfillment は充足カウンタとステータス遷移のテスト
func TestProgressTracker_RecordFulfillment(t *testing.T) {
	tracker, store, tx := newTestProgress()
	ctx := context.Background()

	line := DemandLine{ID: "L1", CompanyID: "C1", DocumentID: "D1", ItemID: "ITEM-A",
		RequiredQuantity: 100, FulfilledQuantity: 0, Status: LinePending}
	store.putLine(line)

	// pending -> partial
	err := tracker.RecordFulfillment(ctx, tx, &line, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), line.FulfilledQuantity)
	assert.Equal(t, int64(70), line.RemainingQuantity())
	assert.Equal(t, LinePartial, line.Status)
	assert.Equal(t, LinePartial, store.line("C1", "L1").Status)

	// partial -> complete
	err = tracker.RecordFulfillment(ctx, tx, &line, 70)
	require.NoError(t, err)
	assert.Equal(t, int64(100), line.FulfilledQuantity)
	assert.Equal(t, LineComplete, line.Status)
}

// TestProgressTracker_RecordFulfillment_OverFulfillment は必要数量超過の拒否テスト
func TestProgressTracker_RecordFulfillment_OverFulfillment(t *testing.T) {
	tracker, store, tx := newTestProgress()
	ctx := context.Background()

	line := DemandLine{ID: "L1", CompanyID: "C1", DocumentID: "D1", ItemID: "ITEM-A",
		RequiredQuantity: 100, FulfilledQuantity: 80, Status: LinePartial}
	store.putLine(line)

	err := tracker.RecordFulfillment(ctx, tx, &line, 30)
	assert.ErrorIs(t, err, ErrOverFulfillment)

	// 失敗時はカウンタが変わらない
	assert.Equal(t, int64(80), line.FulfilledQuantity)
	assert.Equal(t, int64(80), store.line("C1", "L1").FulfilledQuantity)
}

// TestProgressTracker_RecordFulfillment_InvalidQuantity は0以下の数量の拒否テスト
func TestProgressTracker_RecordFulfillment_InvalidQuantity(t *testing.T) {
	tracker, _, tx := newTestProgress()
	ctx := context.Background()

	line := DemandLine{ID: "L1", CompanyID: "C1", RequiredQuantity: 100}

	err := tracker.RecordFulfillment(ctx, tx, &line, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	err = tracker.RecordFulfillment(ctx, tx, &line, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// TestProgressTracker_RefreshDocumentStatus はドキュメントステータス導出のテスト
func TestProgressTracker_RefreshDocumentStatus(t *testing.T) {
	tracker, store, tx := newTestProgress()
	ctx := context.Background()

	document := Document{ID: "D1", CompanyID: "C1", Kind: DocumentASN, Status: DocumentOpen}
	store.putDocument(document)
	store.putLine(DemandLine{ID: "L1", CompanyID: "C1", DocumentID: "D1", RequiredQuantity: 10, FulfilledQuantity: 10, Status: LineComplete})
	store.putLine(DemandLine{ID: "L2", CompanyID: "C1", DocumentID: "D1", RequiredQuantity: 10, FulfilledQuantity: 0, Status: LinePending})

	// 未完了明細が残っている間はpartial
	completed, err := tracker.RefreshDocumentStatus(ctx, tx, &document)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, DocumentPartial, document.Status)
	assert.Equal(t, DocumentPartial, store.document("C1", "D1").Status)

	// 全明細完了でcompleted
	store.putLine(DemandLine{ID: "L2", CompanyID: "C1", DocumentID: "D1", RequiredQuantity: 10, FulfilledQuantity: 10, Status: LineComplete})

	completed, err = tracker.RefreshDocumentStatus(ctx, tx, &document)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, DocumentCompleted, store.document("C1", "D1").Status)
}

// TestProgressTracker_RefreshDocumentStatus_IgnoresDeletedLines は論理削除済み
// 明細が完了判定から除外されることのテスト
func TestProgressTracker_RefreshDocumentStatus_IgnoresDeletedLines(t *testing.T) {
	tracker, store, tx := newTestProgress()
	ctx := context.Background()

	document := Document{ID: "D1", CompanyID: "C1", Kind: DocumentASN, Status: DocumentOpen}
	store.putDocument(document)
	store.putLine(DemandLine{ID: "L1", CompanyID: "C1", DocumentID: "D1", RequiredQuantity: 10, FulfilledQuantity: 10, Status: LineComplete})
	store.putLine(DemandLine{ID: "L2", CompanyID: "C1", DocumentID: "D1", RequiredQuantity: 10, Status: LinePending, IsDeleted: true})

	completed, err := tracker.RefreshDocumentStatus(ctx, tx, &document)
	require.NoError(t, err)
	assert.True(t, completed)
}
