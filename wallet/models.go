package wallet

import (
	"time"

	"sutradharx/aptos"
)

// Session is the connected-wallet context every dashboard route runs under.
// It carries no JSON annotations so presentation layers can shape it themselves.
type Session struct {
	ID        string
	Address   string
	Network   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ShortAddress renders the active address as 0x1234...abcd.
func (s Session) ShortAddress() string {
	return aptos.ShortAddress(s.Address)
}

// Challenge is a one-time nonce the wallet must sign to connect.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConnectRequest is the signed challenge returned by the wallet.
// PublicKey and Signature are hex encoded, with or without a 0x prefix.
type ConnectRequest struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
	Network   string `json:"network"`
}

// ConnectResult bundles the session token and the session it encodes.
type ConnectResult struct {
	Token   string
	Session Session
}
