package correlation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// Selector is a 4-byte ABI function selector.
type Selector [4]byte

// Default Umbra selectors.
var (
	SelectorSendEth               = MustParseSelector("0xbeb9addf")
	SelectorSendToken             = MustParseSelector("0xb9bfabe1")
	SelectorWithdrawTokenOnBehalf = MustParseSelector("0x81ab0fcd")
)

// DefaultContract is the Umbra deployment address, identical on every supported network.
const DefaultContract domain.Address = "0xfb2dc580eed955b528407b4d36ffafe3da685401"

// ErrShortCalldata is returned when calldata ends before a required argument.
var ErrShortCalldata = errors.New("calldata too short")

const (
	selectorLen = 4
	wordLen     = 32

	stealthArg = 0 // stealth address: argument slot 0 of every protocol call
	sponsorArg = 3 // sponsor: argument slot 3 of withdrawTokenOnBehalf
)

// ParseSelector parses a 0x-prefixed 8-hex-digit selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return sel, fmt.Errorf("invalid selector %q: %w", s, err)
	}
	if len(b) != selectorLen {
		return sel, fmt.Errorf("invalid selector %q: want 4 bytes, got %d", s, len(b))
	}
	copy(sel[:], b)
	return sel, nil
}

// MustParseSelector is ParseSelector that panics on error.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Protocol is the static description of the stealth-address protocol.
type Protocol struct {
	// Contracts maps each watched network to the protocol contract address.
	Contracts             map[domain.NetworkID]domain.Address
	SendEth               Selector
	SendToken             Selector
	WithdrawTokenOnBehalf Selector
}

// DefaultProtocol returns the Umbra protocol deployed at DefaultContract on the given networks.
func DefaultProtocol(networks ...domain.NetworkID) Protocol {
	contracts := make(map[domain.NetworkID]domain.Address, len(networks))
	for _, n := range networks {
		contracts[n] = DefaultContract
	}
	return Protocol{
		Contracts:             contracts,
		SendEth:               SelectorSendEth,
		SendToken:             SelectorSendToken,
		WithdrawTokenOnBehalf: SelectorWithdrawTokenOnBehalf,
	}
}

// Contract returns the protocol contract on network.
func (p Protocol) Contract(network domain.NetworkID) (domain.Address, bool) {
	addr, ok := p.Contracts[network]
	return addr, ok
}

func selectorOf(data []byte) (Selector, bool) {
	var sel Selector
	if len(data) < selectorLen {
		return sel, false
	}
	copy(sel[:], data[:selectorLen])
	return sel, true
}

// addressArg decodes the address held in ABI argument slot i.
func addressArg(data []byte, i int) (domain.Address, error) {
	start := selectorLen + i*wordLen
	end := start + wordLen
	if len(data) < end {
		return "", fmt.Errorf("argument %d needs %d bytes, have %d: %w", i, end, len(data), ErrShortCalldata)
	}
	return domain.AddressFromWord(data[start:end]), nil
}
