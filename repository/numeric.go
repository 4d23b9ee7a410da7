package repository

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// uint256 values are stored as NUMERIC(78,0); they cross the driver as
// decimal text to avoid lossy float conversions.

func numericParam(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nullableNumericParam(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}

func parseNullableNumeric(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	return parseNumeric(*s)
}

func addressParam(a common.Address) string {
	return a.Hex()
}

func nullableAddressParam(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := a.Hex()
	return &s
}

func parseNullableAddress(s *string) *common.Address {
	if s == nil {
		return nil
	}
	a := common.HexToAddress(*s)
	return &a
}
