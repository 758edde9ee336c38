package wallet

import (
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Balances is the derived view of a vendor wallet. It is never stored;
// FoldEntries recomputes it from the ledger on every read.
type Balances struct {
	WithdrawableCents int64 `json:"withdrawable_cents"`
	PendingCents      int64 `json:"pending_cents"`
	FrozenCents       int64 `json:"frozen_cents"`
	// TotalCents is the sum of the three buckets above.
	TotalCents int64 `json:"total_cents"`
}

// FoldEntries derives wallet balances from a vendor's full ledger history.
//
// Cleared entries land in the withdrawable balance, pending entries in the
// pending balance, and held entries in the frozen balance regardless of
// status. Pending RESERVE debits reduce withdrawable directly because they
// earmark funds that already cleared. Voided entries never count.
func FoldEntries(entries []models.LedgerEntry) Balances {
	var balances Balances
	for _, entry := range entries {
		if entry.Status == enums.LedgerEntryStatusVoided {
			continue
		}
		if entry.Held {
			balances.FrozenCents += entry.AmountCents
			continue
		}
		switch entry.Status {
		case enums.LedgerEntryStatusCleared:
			balances.WithdrawableCents += entry.AmountCents
		case enums.LedgerEntryStatusPending:
			if entry.EntryType == enums.LedgerEntryTypeReserve {
				balances.WithdrawableCents += entry.AmountCents
			} else {
				balances.PendingCents += entry.AmountCents
			}
		}
	}
	balances.TotalCents = balances.WithdrawableCents + balances.PendingCents + balances.FrozenCents
	return balances
}
