package token

// BalanceResponse is returned by the balances endpoint
type BalanceResponse struct {
	Account string `json:"account"` // raw format
	Amount  uint64 `json:"amount"`  // in token units
}

// AllowanceResponse is returned by the allowances endpoint
type AllowanceResponse struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

// TransferFromRequest asks the token service to move allowance-backed funds
type TransferFromRequest struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  uint64 `json:"amount"`
}

// TransferRequest asks the token service to move funds out of the sender
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// TransferResponse reports whether the token accepted a transfer
type TransferResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
}
