package store

import "time"

// BlockInfo records why an identity is in the block set.
type BlockInfo struct {
	Source    string    `json:"source"` // "static", "auto", "manual"
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Storer is the common interface for block-set backends (in-memory, Redis).
// Blocks are permanent: they stay until an explicit Unblock.
type Storer interface {
	IsBlocked(ip string) bool
	Block(ip string, info BlockInfo)
	Unblock(ip string) error
	ListBlocks() (map[string]BlockInfo, error)
}
