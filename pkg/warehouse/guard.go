package warehouse

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// OwnershipGuard validates the ownership chain of a demand line before any
// mutation: line -> document -> upstream order, all resolved fresh inside the
// caller's transaction. No caller-supplied or previously loaded parent id is
// trusted, which is what keeps one document's operation from touching
// another document's data.
// 明細行の所有権チェーンを変更前に検証するガード。親IDは常にトランザクション内で再解決する
type OwnershipGuard struct {
	logger *zap.Logger
}

// NewOwnershipGuard creates a new ownership guard
// 新しい所有権ガードを作成
func NewOwnershipGuard(logger *zap.Logger) *OwnershipGuard {
	return &OwnershipGuard{logger: logger}
}

// ValidateOwnership re-reads the document and demand line for the company and
// verifies the line's actual parent-document id matches the caller's
// documentID. It returns the freshly read (and row-locked) entities; callers
// must use these, never earlier reads.
// ドキュメントと明細行を再読込し、所有権を検証。返却されたエンティティのみ使用すること
func (g *OwnershipGuard) ValidateOwnership(ctx context.Context, tx Tx, companyID string, kind DocumentKind, documentID, lineID string) (*Document, *DemandLine, error) {
	document, err := tx.GetDocument(ctx, companyID, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, NewStorageError("get_document", "ドキュメント取得に失敗しました", err)
	}
	if document.IsDeleted || document.Kind != kind {
		return nil, nil, ErrDocumentNotFound
	}

	line, err := tx.GetDemandLineForUpdate(ctx, companyID, lineID)
	if err != nil {
		if errors.Is(err, ErrDemandLineNotFound) {
			return nil, nil, ErrDemandLineNotFound
		}
		return nil, nil, NewStorageError("get_demand_line", "明細行取得に失敗しました", err)
	}
	if line.IsDeleted {
		return nil, nil, ErrDemandLineNotFound
	}

	// 明細行が実際に属するドキュメントIDと呼び出し元指定のIDを照合
	if line.DocumentID != document.ID {
		g.logger.Warn("所有権不一致を検出しました",
			zap.String("company_id", companyID),
			zap.String("demand_line_id", lineID),
			zap.String("expected_document_id", documentID),
			zap.String("actual_document_id", line.DocumentID),
		)
		return nil, nil, &OwnershipError{
			DemandLineID:       lineID,
			ExpectedDocumentID: documentID,
			ActualDocumentID:   line.DocumentID,
		}
	}

	// 上流ドキュメント（発注書/受注）の存在確認
	exists, err := tx.UpstreamOrderExists(ctx, companyID, kind, document.UpstreamOrderID)
	if err != nil {
		return nil, nil, NewStorageError("upstream_order_exists", "上流ドキュメント確認に失敗しました", err)
	}
	if !exists {
		return nil, nil, ErrUpstreamOrderNotFound
	}

	return document, line, nil
}
