package domain

import (
	"encoding/hex"
	"strings"
)

// Address is a lower-cased, 0x-prefixed EVM account or contract address.
// Compare addresses only after NormalizeAddress.
type Address string

// NativeToken is the sentinel token address used for the chain's base asset.
const NativeToken Address = "0x0000000000000000000000000000000000000000"

const addressHexLen = 40

// NormalizeAddress lower-cases the address and left-pads it to 20 bytes.
// Short forms such as "0x0" map to the zero address.
func NormalizeAddress(s string) Address {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if len(s) < addressHexLen {
		s = strings.Repeat("0", addressHexLen-len(s)) + s
	}
	return Address("0x" + s)
}

// AddressFromWord returns the address held in the low 20 bytes of a 32-byte ABI word.
func AddressFromWord(word []byte) Address {
	if len(word) > 20 {
		word = word[len(word)-20:]
	}
	return Address("0x" + hex.EncodeToString(word))
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == NativeToken
}
