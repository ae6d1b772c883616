// Package remote is the party document transport: a remote store holding
// one document per party, supporting partial-field updates and a
// per-document update stream for listeners on other instances.
package remote

import (
	"context"
	"encoding/json"
)

// Update is one externally delivered document change. Origin identifies the
// writer so a session can drop echoes of its own writes.
type Update struct {
	PartyID string                     `json:"partyId"`
	Origin  string                     `json:"origin"`
	Fields  map[string]json.RawMessage `json:"fields"`
}

// DocumentStore is the persistence/listener boundary consumed by the
// coordinator. Implementations must apply field updates partially; the
// coordinator never rewrites a whole document after create.
type DocumentStore interface {
	CreateDocument(ctx context.Context, partyID string, fields map[string]any) error
	UpdateDocument(ctx context.Context, partyID string, fields map[string]any) error
	GetDocument(ctx context.Context, partyID string) (map[string]json.RawMessage, error)
	Subscribe(ctx context.Context, partyID string) (<-chan Update, error)
}
