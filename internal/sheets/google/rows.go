package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lifehub/internal/core"
)

// transactionRow lays out a transaction as
// Date | Description | Amount | Type | Category | Card | Account | Notes | Created | ID.
func transactionRow(t core.Transaction) []any {
	return []any{
		t.Date.String(),
		t.Description,
		t.Amount.StringFixed(2),
		string(t.Type),
		t.CategoryID,
		t.PaymentMethodID,
		t.AccountID,
		t.Notes,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.ID,
	}
}

// snapshotRow lays out a snapshot as Taken | Assets | Liabilities | Net worth | Event.
func snapshotRow(s core.NetWorthSnapshot) []any {
	return []any{
		s.TakenAt.UTC().Format(time.RFC3339),
		s.Assets.StringFixed(2),
		s.Liabilities.StringFixed(2),
		s.NetWorth.NetWorth.StringFixed(2),
		s.EventID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
