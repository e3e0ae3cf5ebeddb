package identity

import (
	"encoding/hex"
	"strings"
	"time"
)

// Precomputed 4-byte selectors for the registry view functions.
const (
	selGetIdentity   = "0x5c23bdf5" // getIdentity(address)
	selGetReputation = "0x33c0b7c7" // getReputation(address)
)

// identityCalldata encodes getIdentity(wallet).
func identityCalldata(wallet string) string {
	return selGetIdentity + padAddress(wallet)
}

// reputationCalldata encodes getReputation(wallet).
func reputationCalldata(wallet string) string {
	return selGetReputation + padAddress(wallet)
}

// padAddress left-pads a hex address to a 32-byte ABI word.
func padAddress(addr string) string {
	addr = strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(addr) > 64 {
		addr = addr[len(addr)-64:]
	}
	return strings.Repeat("0", 64-len(addr)) + addr
}

// word extracts the n-th 32-byte word from an ABI-encoded result.
func word(result string, n int) ([]byte, bool) {
	hexBody := strings.TrimPrefix(result, "0x")
	start := n * 64
	if len(hexBody) < start+64 {
		return nil, false
	}
	b, err := hex.DecodeString(hexBody[start : start+64])
	if err != nil {
		return nil, false
	}
	return b, true
}

// wordInt decodes the n-th word as a small unsigned integer. Values
// wider than 63 bits are clamped.
func wordInt(result string, n int) int64 {
	b, ok := word(result, n)
	if !ok {
		return 0
	}
	var v int64
	for _, c := range b {
		if v > (1<<55)-1 {
			return 1<<63 - 1
		}
		v = v<<8 | int64(c)
	}
	return v
}

// wordString decodes a dynamic string whose offset lives in the n-th
// word.
func wordString(result string, n int) string {
	offset := wordInt(result, n)
	if offset <= 0 || offset%32 != 0 {
		return ""
	}
	slot := int(offset / 32)
	length := wordInt(result, slot)
	if length <= 0 || length > 256 {
		return ""
	}

	hexBody := strings.TrimPrefix(result, "0x")
	start := (slot + 1) * 64
	end := start + int(length)*2
	if len(hexBody) < end {
		return ""
	}
	b, err := hex.DecodeString(hexBody[start:end])
	if err != nil {
		return ""
	}
	return string(b)
}

// decodeIdentity decodes (uint256 tokenId, string name, uint256
// registeredAt) from the registry's return data.
func decodeIdentity(wallet, result string) *OnChainIdentity {
	return &OnChainIdentity{
		TokenID:      wordInt(result, 0),
		Name:         wordString(result, 1),
		Wallet:       wallet,
		RegisteredAt: time.Unix(wordInt(result, 2), 0).UTC(),
	}
}

// decodeReputation decodes (uint256 score, uint256 contributions,
// uint256 lastUpdated).
func decodeReputation(result string) OnChainReputation {
	score := wordInt(result, 0)
	contributions := wordInt(result, 1)
	return OnChainReputation{
		Score:         int(score),
		Contributions: int(contributions),
		LastUpdated:   time.Unix(wordInt(result, 2), 0).UTC(),
	}
}
