package domain

// MintStatus is the lifecycle state of a submitted mint.
type MintStatus string

const (
	MintStatusPending   MintStatus = "pending"
	MintStatusConfirmed MintStatus = "confirmed"
	MintStatusReverted  MintStatus = "reverted"
)

// String returns the string representation of MintStatus.
func (s MintStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s MintStatus) IsValid() bool {
	return s == MintStatusPending || s == MintStatusConfirmed || s == MintStatusReverted
}

// IsFinal reports whether no further transition is expected.
func (s MintStatus) IsFinal() bool {
	return s == MintStatusConfirmed || s == MintStatusReverted
}

// MintRecord is a mint submitted through this service.
// Corresponds to mints table in PostgreSQL.
type MintRecord struct {
	TxHash      string     `json:"txHash"`                // PRIMARY KEY, 0x-prefixed
	Contract    string     `json:"contract"`              // contract address (checksummed)
	Recipient   string     `json:"recipient"`             // mint recipient
	TokenURI    string     `json:"tokenUri"`              // URI passed to the contract
	Method      string     `json:"method"`                // mint | safeMint
	Status      MintStatus `json:"status"`                // pending | confirmed | reverted
	TokenID     *string    `json:"tokenId,omitempty"`     // decimal token id (nullable, parsed from receipt)
	BlockNumber *int64     `json:"blockNumber,omitempty"` // inclusion block (nullable)
	SubmittedAt int64      `json:"submittedAt"`           // Unix timestamp in milliseconds
	ConfirmedAt *int64     `json:"confirmedAt,omitempty"` // Unix timestamp in milliseconds (nullable)
}
