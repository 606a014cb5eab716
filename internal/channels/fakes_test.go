package channels

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

type fakeProvider struct {
	name        string
	description string
	homePage    string
	rating      string
	dataVersion string
	features    Features

	items   []Entry
	all     []Entry
	latest  []Entry
	sources []catalog.MediaSource
	err     error

	fetchDelay time.Duration

	mu          sync.Mutex
	listCalls   int
	allCalls    int
	latestCalls int
}

func (p *fakeProvider) Name() string           { return p.name }
func (p *fakeProvider) Description() string    { return p.description }
func (p *fakeProvider) HomePageURL() string    { return p.homePage }
func (p *fakeProvider) ParentalRating() string { return p.rating }
func (p *fakeProvider) DataVersion() string    { return p.dataVersion }
func (p *fakeProvider) Features() Features     { return p.features }

func (p *fakeProvider) list(counter *int, entries []Entry) (*Listing, error) {
	p.mu.Lock()
	*counter++
	p.mu.Unlock()
	if p.fetchDelay > 0 {
		time.Sleep(p.fetchDelay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &Listing{Entries: entries, Total: len(entries)}, nil
}

func (p *fakeProvider) ListItems(_ context.Context, _ Query) (*Listing, error) {
	return p.list(&p.listCalls, p.items)
}

func (p *fakeProvider) ListAllMedia(_ context.Context, _ Query) (*Listing, error) {
	return p.list(&p.allCalls, p.all)
}

func (p *fakeProvider) ListLatestMedia(_ context.Context, _ Query) (*Listing, error) {
	return p.list(&p.latestCalls, p.latest)
}

func (p *fakeProvider) ResolveMediaSources(_ context.Context, _ string) ([]catalog.MediaSource, error) {
	if p.sources == nil {
		return nil, errors.New("no sources")
	}
	return p.sources, nil
}

func (p *fakeProvider) calls(counter *int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *counter
}

type fakeFactory struct {
	providers []Provider
	err       error
}

func (f *fakeFactory) Channels() ([]Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.providers, nil
}

type fakeUser struct {
	id        uuid.UUID
	hidden    map[uuid.UUID]bool
	favorites map[uuid.UUID]bool
	liked     map[uuid.UUID]bool
	played    map[uuid.UUID]bool
}

func (u *fakeUser) UserID() uuid.UUID               { return u.id }
func (u *fakeUser) CanSeeChannel(id uuid.UUID) bool { return !u.hidden[id] }
func (u *fakeUser) IsFavorite(id uuid.UUID) bool    { return u.favorites[id] }
func (u *fakeUser) Likes(id uuid.UUID) bool         { return u.liked[id] }
func (u *fakeUser) HasPlayed(id uuid.UUID) bool     { return u.played[id] }

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefresher) Refresh(_ context.Context, _ catalog.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func entry(externalID, name string, kind ItemKind) Entry {
	return Entry{ExternalID: externalID, Name: name, Kind: kind}
}
