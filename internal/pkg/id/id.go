// Package id hands out entity identifiers and time-ordered sequence numbers.
package id

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// New returns a random UUID string for entity primary keys.
func New() string {
	return uuid.NewString()
}

// Sequencer produces strictly increasing int64 values within one process.
// Values from different nodes interleave by timestamp.
type Sequencer struct {
	node *snowflake.Node
}

func NewSequencer(nodeID int64) (*Sequencer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Sequencer{node: node}, nil
}

func (s *Sequencer) Next() int64 {
	return s.node.Generate().Int64()
}
