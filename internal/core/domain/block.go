package domain

// Block is the header of a processed block.
type Block struct {
	Network    NetworkID
	Number     uint64
	Hash       string
	ParentHash string
	Timestamp  uint64
}
