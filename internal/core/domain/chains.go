package domain

import "strconv"

// NetworkID is the numeric EVM chain identifier. All correlation state is
// partitioned by it.
type NetworkID uint64

type NetworkName string

const (
	// Network IDs
	NetworkEthereum NetworkID = 1
	NetworkOptimism NetworkID = 10
	NetworkPolygon  NetworkID = 137
	NetworkArbitrum NetworkID = 42161

	// Network Names (Internal Codes)
	NetworkNameEthereum NetworkName = "ETHEREUM_MAINNET"
	NetworkNameOptimism NetworkName = "OPTIMISM_MAINNET"
	NetworkNamePolygon  NetworkName = "POLYGON_MAINNET"
	NetworkNameArbitrum NetworkName = "ARBITRUM_ONE"
)

// NetworkIDToName maps NetworkID to its human-readable internal code.
var NetworkIDToName = map[NetworkID]NetworkName{
	NetworkEthereum: NetworkNameEthereum,
	NetworkOptimism: NetworkNameOptimism,
	NetworkPolygon:  NetworkNamePolygon,
	NetworkArbitrum: NetworkNameArbitrum,
}

// String returns the decimal form used in metric labels and storage keys.
func (n NetworkID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// Name returns the internal code for known networks, or the decimal ID.
func (n NetworkID) Name() string {
	if name, ok := NetworkIDToName[n]; ok {
		return string(name)
	}
	return n.String()
}
