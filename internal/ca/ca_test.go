package ca

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", "check CTGGLD11111111111111111111111111111", "CTGGLD11111111111111111111111111111", true},
		{"letter O is not base58", "check CTOGOLD1111111111111111111111111111", "", false},
		{"pump", "ape 7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr now", "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", true},
		{"first wins", "So11111111111111111111111111111111111111112 and EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "So11111111111111111111111111111111111111112", true},
		{"too short", "abc123", "", false},
		{"excluded alphabet", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", "", false},
		{"too long run", "1111111111111111111111111111111111111111111111", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPublicKey(t *testing.T) {
	assert.True(t, IsPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.True(t, IsPublicKey("So11111111111111111111111111111111111111112"))
	assert.False(t, IsPublicKey("CTGGLD11111111111111111111111111111"))
	assert.False(t, IsPublicKey("not-base58"))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "EPjF...Dt1v", Short("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Equal(t, "abc", Short("abc"))
}
