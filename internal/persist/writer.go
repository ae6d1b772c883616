package persist

import (
	"context"
	"sync"
	"time"

	"github.com/gohugoio/hashstructure"
	"github.com/rs/zerolog"
)

// Store is the slice of the remote document transport the writer needs.
// Updates are partial: only the given fields are rewritten.
type Store interface {
	UpdateDocument(ctx context.Context, partyID string, fields map[string]any) error
}

const (
	queueDebounceWindow = 300 * time.Millisecond
	fieldDebounceWindow = 250 * time.Millisecond
	writeTimeout        = 10 * time.Second
)

// QueueSnapshot is the staged payload for a queue write. SongIDs, Shuffled
// and Mode feed the content hash; Fields carries the document fields to
// write. Source is the large source-playlist sub-payload, hashed on its own
// and included under SourceField only when it actually changed.
type QueueSnapshot struct {
	Fields      map[string]any
	SongIDs     []string
	Shuffled    bool
	Mode        string
	Source      any
	SourceField string
}

// Writer coalesces bursts of local party mutations into minimal remote
// writes. Queue edits and generic field updates debounce independently;
// write failures retry on a bounded budget and are then dropped — the local
// session stays the source of truth and reconciles on the next write.
type Writer struct {
	log     zerolog.Logger
	store   Store
	retry   RetryPolicy
	partyID string

	queueDeb debouncer
	fieldDeb debouncer

	mu            sync.Mutex
	stagedQueue   *QueueSnapshot
	pendingFields map[string]any
	lastQueueHash uint64
	lastSrcHash   uint64
	closed        bool
}

// NewWriter builds a writer for one party document.
func NewWriter(store Store, partyID string, log zerolog.Logger) *Writer {
	return &Writer{
		log:           log.With().Str("component", "persist").Str("partyId", partyID).Logger(),
		store:         store,
		retry:         DefaultRetry,
		partyID:       partyID,
		pendingFields: map[string]any{},
	}
}

// QueueChanged stages a queue write. Successive calls within the debounce
// window replace the staged snapshot; only the last one is written.
func (w *Writer) QueueChanged(snap QueueSnapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.stagedQueue = &snap
	w.mu.Unlock()
	w.queueDeb.schedule(queueDebounceWindow, w.flushQueue)
}

// FieldsChanged merges fields into the pending update map. Unrelated field
// changes landing in the same window go out as one write.
func (w *Writer) FieldsChanged(fields map[string]any) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	for k, v := range fields {
		w.pendingFields[k] = v
	}
	w.mu.Unlock()
	w.fieldDeb.schedule(fieldDebounceWindow, w.flushFields)
}

// Flush writes anything still pending immediately. Used at the minimize
// and restore transitions so the persisted state is current either side of
// the UI change.
func (w *Writer) Flush() {
	if w.queueDeb.fire() {
		w.flushQueue()
	}
	if w.fieldDeb.fire() {
		w.flushFields()
	}
}

// Close cancels pending timers and drops staged state. A closed writer
// never writes again; teardown must not let a stale pending write resurrect
// the party.
func (w *Writer) Close() {
	w.queueDeb.cancel()
	w.fieldDeb.cancel()
	w.mu.Lock()
	w.closed = true
	w.stagedQueue = nil
	w.pendingFields = map[string]any{}
	w.mu.Unlock()
}

func (w *Writer) flushQueue() {
	w.mu.Lock()
	snap := w.stagedQueue
	w.stagedQueue = nil
	if snap == nil || w.closed {
		w.mu.Unlock()
		return
	}

	hash := queueHash(snap.SongIDs, snap.Shuffled, snap.Mode)
	if hash == w.lastQueueHash {
		// A remote echo or an undo netted the queue back to the last
		// written state; skip the write entirely.
		w.mu.Unlock()
		w.log.Debug().Msg("queue write skipped, content unchanged")
		return
	}

	fields := make(map[string]any, len(snap.Fields)+1)
	for k, v := range snap.Fields {
		fields[k] = v
	}
	srcHash := w.lastSrcHash
	if snap.Source != nil && snap.SourceField != "" {
		if h := payloadHash(snap.Source); h != w.lastSrcHash {
			fields[snap.SourceField] = snap.Source
			srcHash = h
		}
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := w.retry.Do(ctx, func(ctx context.Context) error {
		return w.store.UpdateDocument(ctx, w.partyID, fields)
	}); err != nil {
		// Retry budget exhausted. Local state stays correct and will
		// reconcile on the next successful write.
		w.log.Warn().Err(err).Msg("queue write dropped after retries")
		return
	}

	w.mu.Lock()
	w.lastQueueHash = hash
	w.lastSrcHash = srcHash
	w.mu.Unlock()
}

func (w *Writer) flushFields() {
	w.mu.Lock()
	if w.closed || len(w.pendingFields) == 0 {
		w.mu.Unlock()
		return
	}
	fields := w.pendingFields
	w.pendingFields = map[string]any{}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := w.retry.Do(ctx, func(ctx context.Context) error {
		return w.store.UpdateDocument(ctx, w.partyID, fields)
	}); err != nil {
		w.log.Warn().Err(err).Msg("field write dropped after retries")
	}
}

// queueHash fingerprints the parts of the queue payload that matter for
// change detection: song ids, the shuffle flag and the queue mode.
func queueHash(songIDs []string, shuffled bool, mode string) uint64 {
	h, err := hashstructure.Hash(struct {
		IDs      []string
		Shuffled bool
		Mode     string
	}{songIDs, shuffled, mode}, nil)
	if err != nil {
		return 0
	}
	return h
}

func payloadHash(v any) uint64 {
	h, err := hashstructure.Hash(v, nil)
	if err != nil {
		return 0
	}
	return h
}
