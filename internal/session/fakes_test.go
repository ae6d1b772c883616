package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"party-service/internal/party"
	"party-service/internal/player"
	"party-service/internal/remote"
)

// fakeDocStore is an in-memory remote.DocumentStore. Tests push inbound
// updates through the channels handed out by Subscribe.
type fakeDocStore struct {
	mu         sync.Mutex
	docs       map[string]map[string]json.RawMessage
	createErr  error
	updateErr  error
	creates    int
	updates    int
	subs       map[string][]chan remote.Update
	lastFields map[string]any
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs: map[string]map[string]json.RawMessage{},
		subs: map[string][]chan remote.Update{},
	}
}

func (f *fakeDocStore) encode(partyID string, fields map[string]any) error {
	doc, ok := f.docs[partyID]
	if !ok {
		doc = map[string]json.RawMessage{}
		f.docs[partyID] = doc
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		doc[k] = raw
	}
	return nil
}

func (f *fakeDocStore) CreateDocument(_ context.Context, partyID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	return f.encode(partyID, fields)
}

func (f *fakeDocStore) UpdateDocument(_ context.Context, partyID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.lastFields = fields
	return f.encode(partyID, fields)
}

func (f *fakeDocStore) GetDocument(_ context.Context, partyID string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[partyID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (f *fakeDocStore) Subscribe(_ context.Context, partyID string) (<-chan remote.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan remote.Update, 16)
	f.subs[partyID] = append(f.subs[partyID], ch)
	return ch, nil
}

func (f *fakeDocStore) push(u remote.Update) {
	f.mu.Lock()
	subs := append([]chan remote.Update(nil), f.subs[u.PartyID]...)
	f.mu.Unlock()
	for _, ch := range subs {
		ch <- u
	}
}

func (f *fakeDocStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// fakeDirectory is an in-memory PartyDirectory plus Audit.
type fakeDirectory struct {
	mu       sync.Mutex
	codes    map[string]string
	follows  map[string]bool
	inactive []string
	history  []party.HistoryItem
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		codes:   map[string]string{},
		follows: map[string]bool{},
	}
}

func (f *fakeDirectory) CreateParty(_ context.Context, p *party.Party) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.AccessCode != "" {
		f.codes[p.AccessCode] = p.ID
	}
	return nil
}

func (f *fakeDirectory) MarkInactive(_ context.Context, partyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inactive = append(f.inactive, partyID)
	return nil
}

func (f *fakeDirectory) FindActiveByAccessCode(_ context.Context, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.codes[code]
	if !ok {
		return "", party.ErrPartyNotFound
	}
	return id, nil
}

func (f *fakeDirectory) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[followerID+"/"+followeeID], nil
}

func (f *fakeDirectory) AppendHistory(_ context.Context, _ string, item party.HistoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, item)
	return nil
}

func (f *fakeDirectory) markedInactive() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inactive...)
}

// drivers hands each party its own stub and remembers it for assertions.
type drivers struct {
	mu    sync.Mutex
	stubs map[string]*player.Stub
	voice map[string]*player.NopVoice
}

func newDrivers() *drivers {
	return &drivers{stubs: map[string]*player.Stub{}, voice: map[string]*player.NopVoice{}}
}

func (d *drivers) newDriver(partyID string) player.Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := player.NewStub()
	d.stubs[partyID] = s
	return s
}

func (d *drivers) newVoice(partyID string) player.VoiceChat {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := &player.NopVoice{}
	d.voice[partyID] = v
	return v
}

func (d *drivers) stub(partyID string) *player.Stub {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stubs[partyID]
}

func (d *drivers) voiceFor(partyID string) *player.NopVoice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voice[partyID]
}

type testEnv struct {
	reg     *Registry
	store   *fakeDocStore
	dir     *fakeDirectory
	drivers *drivers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeDocStore()
	dir := newFakeDirectory()
	drv := newDrivers()
	reg := NewRegistry(Deps{
		Log:       zerolog.Nop(),
		Store:     store,
		Origin:    "local-origin",
		Audit:     dir,
		Dir:       dir,
		NewDriver: drv.newDriver,
		NewVoice:  drv.newVoice,
	})
	// Keep the shared event stream drained so emits never drop.
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case <-reg.Events():
			case <-done:
				return
			}
		}
	}()
	return &testEnv{reg: reg, store: store, dir: dir, drivers: drv}
}

func (e *testEnv) createParty(t *testing.T, params CreateParams) *party.Party {
	t.Helper()
	p, err := e.reg.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	return p
}
