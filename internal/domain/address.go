package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex address and returns its lowercase form
func NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), true
}
