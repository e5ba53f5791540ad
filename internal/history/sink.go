// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"errors"

	"github.com/pdiddy/bibformat/pkg/types"
)

// Sink records routed payloads for one run's keys and style. The database at
// Path is opened only when a payload is delivered, so failed or empty runs
// leave it untouched.
type Sink struct {
	Path  string
	Keys  []types.CitationKey
	Style string
}

// Record stores the payload as a new run.
func (s Sink) Record(ctx context.Context, payload string, fragments []types.CitationFragment, format types.OutputFormat) (err error) {
	store, err := Open(s.Path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	keys := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		keys[i] = string(k)
	}
	return store.Record(ctx, &Entry{
		Keys:      keys,
		Format:    format,
		Style:     s.Style,
		Fragments: len(fragments),
		Payload:   payload,
	})
}
