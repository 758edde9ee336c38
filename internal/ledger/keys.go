package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/google/uuid"
)

// IdempotencyKey derives the deterministic key that collapses duplicate
// deliveries of the same settlement event. The qualifier distinguishes
// multiple legitimate entries sharing a reference, such as repeated partial
// refunds against one order. Inputs come from the source event only, so the
// key never changes as ledger state evolves.
func IdempotencyKey(referenceID, vendorID uuid.UUID, entryType enums.LedgerEntryType, qualifier string) string {
	parts := []string{referenceID.String(), vendorID.String(), string(entryType)}
	if qualifier != "" {
		parts = append(parts, qualifier)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
