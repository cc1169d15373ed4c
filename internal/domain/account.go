package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// NormalizeAddress validates a hex account address and returns it lower-cased.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// ValidateOfferID checks that id is a canonical UUID.
func ValidateOfferID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrInvalidOfferID
	}
	return nil
}
