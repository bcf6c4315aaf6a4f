package pagination

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
)

// DefaultErrorMessage is the error state set by a failed load.
const DefaultErrorMessage = "Erro ao carregar dados"

// ErrSuperseded is returned by a load whose result was dropped because Reset
// or a newer Load started after it.
var ErrSuperseded = errors.New("pagination: superseded by a newer load")

// Fetcher performs a GET and decodes the JSON answer into out. path is either
// relative to the API base or an absolute cursor URL.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Option configures a Pager.
type Option func(*options)

type options struct {
	errMessage string
}

// WithErrorMessage replaces DefaultErrorMessage.
func WithErrorMessage(msg string) Option {
	return func(o *options) {
		if msg != "" {
			o.errMessage = msg
		}
	}
}

// State is a consistent snapshot of a Pager.
type State[T any] struct {
	Items       []T
	Count       int
	Next        string
	Loading     bool
	LoadingMore bool
	Err         string
}

// Pager accumulates the pages of one list endpoint. It is safe for
// concurrent use; every load belongs to a generation and results of a
// superseded generation are discarded.
type Pager[T any] struct {
	fetcher Fetcher
	opts    options

	mu          sync.Mutex
	path        string
	params      url.Values
	gen         uint64
	items       []T
	count       int
	next        string
	loading     bool
	loadingMore bool
	err         string
}

// NewPager returns an empty pager for path. Nothing is fetched until Load.
func NewPager[T any](f Fetcher, path string, params url.Values, opts ...Option) *Pager[T] {
	o := options{errMessage: DefaultErrorMessage}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pager[T]{
		fetcher: f,
		opts:    o,
		path:    path,
		params:  cloneValues(params),
	}
}

// Load fetches the first page and replaces the accumulated items.
func (p *Pager[T]) Load(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	path, params := p.path, cloneValues(p.params)
	p.loading = true
	// An in-flight LoadMore belongs to the old generation and will not
	// clear its own flag.
	p.loadingMore = false
	p.mu.Unlock()

	var page Page[T]
	err := p.fetcher.GetJSON(ctx, path, params, &page)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return ErrSuperseded
	}
	p.loading = false
	p.loadingMore = false
	if err != nil {
		p.err = p.opts.errMessage
		return err
	}
	p.items = slices.Clone(page.Results)
	if p.items == nil {
		p.items = []T{}
	}
	p.count = page.Count
	p.next = page.NextURL()
	p.err = ""
	return nil
}

// LoadMore appends the page behind the next cursor. It does nothing when
// there is no cursor, while the first page is loading, or while another
// LoadMore is in flight.
func (p *Pager[T]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.next == "" || p.loading || p.loadingMore {
		p.mu.Unlock()
		return nil
	}
	gen := p.gen
	cursor := p.next
	p.loadingMore = true
	p.mu.Unlock()

	var page Page[T]
	err := p.fetcher.GetJSON(ctx, cursor, nil, &page)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return ErrSuperseded
	}
	p.loadingMore = false
	if err != nil {
		p.err = p.opts.errMessage
		return err
	}
	p.items = append(p.items, page.Results...)
	p.count = page.Count
	p.next = page.NextURL()
	return nil
}

// Reset switches the pager to path and params, discards every accumulated
// page and loads the first page again.
func (p *Pager[T]) Reset(ctx context.Context, path string, params url.Values) error {
	p.mu.Lock()
	p.gen++
	p.path = path
	p.params = cloneValues(params)
	p.items = nil
	p.count = 0
	p.next = ""
	p.loadingMore = false
	p.err = ""
	p.mu.Unlock()

	return p.Load(ctx)
}

// All loads the first page and follows cursors until the last page.
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	for {
		before := p.Next()
		if before == "" {
			break
		}
		if err := p.LoadMore(ctx); err != nil {
			return nil, err
		}
		if p.Next() == before {
			// the server returned the same cursor; stop instead of looping
			break
		}
	}
	return p.Items(), nil
}

// Items returns a copy of the accumulated items in server order.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items)
}

// Count is the server-reported total, not len(Items()).
func (p *Pager[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Next returns the next cursor, "" when there is none.
func (p *Pager[T]) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

func (p *Pager[T]) HasNext() bool { return p.Next() != "" }

func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Pager[T]) LoadingMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingMore
}

// Err returns the error message of the last failed load, "" when none.
func (p *Pager[T]) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// State returns every field under one lock.
func (p *Pager[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State[T]{
		Items:       slices.Clone(p.items),
		Count:       p.count,
		Next:        p.next,
		Loading:     p.loading,
		LoadingMore: p.loadingMore,
		Err:         p.err,
	}
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = slices.Clone(vals)
	}
	return out
}
