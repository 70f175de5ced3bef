package server

// Tariff is the JSON form of a catalog entry
type Tariff struct {
	ID            int    `json:"id"`
	Price         uint64 `json:"price"` // in token units
	TradingPairs  int    `json:"trading_pairs"`
	DurationWeeks int    `json:"duration_weeks"`
}

// PaymentRequest is the body of POST /payments
type PaymentRequest struct {
	Client        string `json:"client"`
	TariffID      int    `json:"tariff_id"`
	EncryptedData []byte `json:"encrypted_data"` // base64
}

// PaymentRecord is the JSON form of a stored payment
type PaymentRecord struct {
	Client        string `json:"client"`
	Index         int    `json:"index"`
	TariffID      int    `json:"tariff_id"`
	Amount        uint64 `json:"amount"`
	EncryptedData []byte `json:"encrypted_data"`
	Timestamp     int64  `json:"timestamp"`
	Paid          bool   `json:"paid"`
}

// PaymentCount is returned by GET /clients/{address}/payments
type PaymentCount struct {
	Client string `json:"client"`
	Count  int    `json:"count"`
}

// LedgerInfo is returned by GET /ledger
type LedgerInfo struct {
	Owner          string `json:"owner"`
	Address        string `json:"address"`
	Token          string `json:"token"`
	OwnerPublicKey string `json:"owner_public_key"`
	Balance        uint64 `json:"balance"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}
