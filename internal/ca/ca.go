// Package ca finds Solana token contract addresses in chat text.
package ca

import (
	"regexp"

	"github.com/mr-tron/base58"
)

// addressRegex matches a run of 32-44 base58 characters. The alphabet
// excludes 0, O, I and l.
var addressRegex = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)

// Extract returns the first contract address candidate in text.
// Only the first match by position is considered.
func Extract(text string) (string, bool) {
	m := addressRegex.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// IsPublicKey reports whether addr decodes to a 32-byte ed25519 public key.
// Extract does not require this; vanity strings that merely look like
// addresses still open polls, but the market oracle will not query them.
func IsPublicKey(addr string) bool {
	b, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(b) == 32
}

// Short renders addr as "abcd...wxyz".
func Short(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
