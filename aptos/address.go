package aptos

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("aptos: invalid account address")

// ed25519Scheme is the single-signer authentication key scheme byte.
const ed25519Scheme = 0x00

// NormalizeAddress returns the canonical long form: 0x followed by 64 lowercase
// hex digits. Short forms such as 0x1 are left-padded with zeros.
func NormalizeAddress(addr string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(addr))
	s = strings.TrimPrefix(s, "0x")
	if s == "" || len(s) > 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	if _, err := hex.DecodeString(padHex(s)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return "0x" + strings.Repeat("0", 64-len(s)) + s, nil
}

func padHex(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

// AddressFromPublicKey derives the account address of a fresh ed25519 account:
// sha3-256(public key || scheme byte).
func AddressFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("aptos: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	buf := make([]byte, 0, len(pub)+1)
	buf = append(buf, pub...)
	buf = append(buf, ed25519Scheme)
	sum := sha3.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// ShortAddress renders 0x1234...abcd for display.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
