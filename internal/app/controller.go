package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/catalog"
	"github.com/thegaspygames/canciones/internal/model"
)

// Loader produces the ordered catalog.
type Loader interface {
	LoadCatalog(ctx context.Context) ([]model.Song, error)
}

// Publisher adds a song to the repository.
type Publisher interface {
	Publish(ctx context.Context, req catalog.PublishRequest) (*catalog.PublishResult, error)
}

// Gate reports whether publishing is allowed and whether the session is
// still valid.
type Gate interface {
	State() auth.State
	Token() (string, error)
}

// Controller owns the state shared by the front ends: the loaded songs,
// the active query and the current page.
type Controller struct {
	loader    Loader
	publisher Publisher
	gate      Gate
	perPage   int
	repoToken string

	mu    sync.Mutex
	songs []model.Song
	query model.Query
	page  int
}

// NewController creates a Controller. gate and publisher may be nil for a
// read-only front end.
func NewController(loader Loader, publisher Publisher, gate Gate, perPage int) *Controller {
	if perPage <= 0 {
		perPage = model.DefaultPerPage
	}
	return &Controller{
		loader:    loader,
		publisher: publisher,
		gate:      gate,
		perPage:   perPage,
		query:     model.Query{Genre: model.All, Model: model.All},
		page:      1,
	}
}

// Refresh reloads the catalog and returns to the first page. On error the
// previous songs are kept.
func (c *Controller) Refresh(ctx context.Context) error {
	songs, err := c.loader.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs = songs
	c.page = 1
	return nil
}

// Songs returns every loaded song, unfiltered.
func (c *Controller) Songs() []model.Song {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Song(nil), c.songs...)
}

// Query returns the active filter.
func (c *Controller) Query() model.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SetQuery replaces the filter and returns to the first page.
func (c *Controller) SetQuery(q model.Query) model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	c.page = 1
	return c.currentPage()
}

// CurrentPage returns the visible page of the filtered songs.
func (c *Controller) CurrentPage() model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage()
}

// NextPage advances one page, stopping at the last.
func (c *Controller) NextPage() model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page++
	return c.currentPage()
}

// PrevPage goes back one page, stopping at the first.
func (c *Controller) PrevPage() model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page--
	return c.currentPage()
}

func (c *Controller) currentPage() model.Page {
	p := model.Paginate(model.Filter(c.songs, c.query), c.page, c.perPage)
	c.page = p.Number
	return p
}

// Genres lists the distinct genres of the loaded songs.
func (c *Controller) Genres() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Genres(c.songs)
}

// Models lists the distinct AI models of the loaded songs.
func (c *Controller) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Models(c.songs)
}

// Publisher returns the publisher if the gate is Authorized, and
// auth.ErrUnauthorized otherwise.
func (c *Controller) Publisher() (Publisher, error) {
	if c.gate == nil || c.publisher == nil || c.gate.State() != auth.Authorized {
		return nil, auth.ErrUnauthorized
	}
	return c.publisher, nil
}

// SetRepositoryToken sets the token used for repository writes when a
// request carries none.
func (c *Controller) SetRepositoryToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repoToken = token
}

// Publish publishes through the gate and puts the new song at the head of
// the loaded catalog. The session must still be valid.
func (c *Controller) Publish(ctx context.Context, req catalog.PublishRequest) (*catalog.PublishResult, error) {
	p, err := c.Publisher()
	if err != nil {
		return nil, err
	}
	if _, err := c.gate.Token(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if req.Token == "" {
		c.mu.Lock()
		req.Token = c.repoToken
		c.mu.Unlock()
	}

	res, err := p.Publish(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs = model.Upsert(c.songs, res.ClientRecord)
	c.page = 1
	return res, nil
}
