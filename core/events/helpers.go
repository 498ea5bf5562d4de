package events

import (
	"math/big"

	"wasabix/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(b []byte) string {
	if len(b) != 20 {
		return ""
	}
	return crypto.MustNewAddress(crypto.WaxPrefix, append([]byte(nil), b...)).String()
}
