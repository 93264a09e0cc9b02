package domain

import "time"

// Cursor represents the indexing position of one network
type Cursor struct {
	Network          NetworkID
	CurrentBlock     uint64
	CurrentBlockHash string
	UpdatedAt        time.Time
}
