package warehouse

import (
	"fmt"
	"regexp"
)

// 英数字、ハイフン、アンダースコアのみ許可
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateIdentifier IDの形式をバリデーション
func ValidateIdentifier(field, id string) error {
	if id == "" {
		return NewValidationError(field, "IDが空です", id)
	}
	if len(id) > 255 {
		return NewValidationError(field, "IDが長すぎます", id)
	}
	if !identifierPattern.MatchString(id) {
		return NewValidationError(field, "IDに無効な文字が含まれています", id)
	}
	return nil
}

// ValidateCompanyID 会社IDの形式をバリデーション
func ValidateCompanyID(companyID string) error {
	return ValidateIdentifier("company_id", companyID)
}

// ValidateUserID ユーザーIDの形式をバリデーション
func ValidateUserID(userID string) error {
	if userID == "" {
		return NewValidationError("user_id", "ユーザーIDが空です", userID)
	}
	if len(userID) > 255 {
		return NewValidationError("user_id", "ユーザーIDが長すぎます", userID)
	}
	return nil
}

// ValidateTransferQuantity 移動数量をバリデーション
func ValidateTransferQuantity(quantity, maxQuantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if maxQuantity > 0 && quantity > maxQuantity {
		return NewValidationError("quantity", "数量が許容上限を超えています", fmt.Sprintf("%d", quantity))
	}
	return nil
}
