package domain

import "github.com/mr-tron/base58"

// pubkeyLen is the length of a Solana public key in bytes.
const pubkeyLen = 32

// IsValidMint reports whether s is a base58-encoded 32-byte Solana address.
func IsValidMint(s string) bool {
	if s == "" || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(b) == pubkeyLen
}
