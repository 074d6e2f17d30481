package asset

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionType is the kind of change a transaction records.
type TransactionType string

// Transaction types.
const (
	TxBuy         TransactionType = "buy"
	TxSell        TransactionType = "sell"
	TxValueChange TransactionType = "value_change"
	TxIncome      TransactionType = "income"
	TxExpense     TransactionType = "expense"
	TxTransfer    TransactionType = "transfer"
)

// TransactionTypes lists every transaction type.
var TransactionTypes = []TransactionType{
	TxBuy,
	TxSell,
	TxValueChange,
	TxIncome,
	TxExpense,
	TxTransfer,
}

// ParseTransactionType parses a transaction type name case-insensitively.
// Hyphens and spaces are accepted in place of underscores.
func ParseTransactionType(s string) (TransactionType, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	for _, t := range TransactionTypes {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// Transaction is one entry in the value history of an asset.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	AssetID      uuid.UUID       `json:"asset_id"`
	Type         TransactionType `json:"transaction_type"`
	AmountBefore float64         `json:"amount_before"`
	AmountAfter  float64         `json:"amount_after"`
	Note         *string         `json:"note"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewTransaction creates a transaction stamped with the current time.
func NewTransaction(assetID uuid.UUID, t TransactionType, before, after float64) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		AssetID:      assetID,
		Type:         t,
		AmountBefore: before,
		AmountAfter:  after,
		Timestamp:    time.Now().UTC(),
	}
}

// WithNote sets the note. An empty note is ignored.
func (t *Transaction) WithNote(note string) *Transaction {
	if note = strings.TrimSpace(note); note != "" {
		t.Note = &note
	}
	return t
}

// Delta is the change in value.
func (t *Transaction) Delta() float64 {
	return t.AmountAfter - t.AmountBefore
}
