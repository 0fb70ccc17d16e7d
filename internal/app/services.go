package app

import (
	"fmt"

	"github.com/thegaspygames/canciones/internal/assets"
	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/catalog"
	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/github"
	httpc "github.com/thegaspygames/canciones/internal/http"
	"github.com/thegaspygames/canciones/internal/progress"
)

// Services is the set of components a front end works with, all built from
// one Settings value.
type Services struct {
	Settings   *config.Settings
	HTTP       *httpc.Client
	GitHub     *github.Client
	Resolver   *assets.Resolver
	Aggregator *catalog.Aggregator
	Publisher  *catalog.Publisher
	Gate       *auth.Gate
	Controller *Controller
}

// NewServices wires the catalog, publishing and session components.
//
// store holds the session; pass auth.NewMemoryStore() for a session that
// does not outlive the process.
func NewServices(settings *config.Settings, store *auth.SessionStore, onProgress progress.Func) (*Services, error) {
	if err := settings.ValidateRepository(); err != nil {
		return nil, err
	}
	if store == nil {
		store = auth.NewMemoryStore()
	}

	hc := httpc.NewClient()
	gh := github.NewClient(settings.GitHub.Owner, settings.GitHub.Repo, settings.GitHub.Branch,
		github.WithBaseURL(settings.GitHub.APIBaseURL),
		github.WithHTTPClient(hc),
	)

	resolver := assets.NewResolver(settings.GitHub.Owner, settings.GitHub.Repo, settings.GitHub.Branch)
	if settings.GitHub.RawBaseURL != "" {
		resolver.RawBaseURL = settings.GitHub.RawBaseURL
	}

	aggregator := catalog.NewAggregator(resolver, gh, hc, catalog.AggregatorOptions{
		MetadataDir: settings.Catalog.MetadataDir,
		IndexName:   settings.Catalog.MetadataIndex,
		SiteBaseURL: settings.Site.BaseURL,
		Concurrency: settings.Catalog.FetchConcurrency,
		Token:       settings.GitHub.Token,
	}, onProgress)

	publisher := catalog.NewPublisher(gh, resolver, catalog.PublisherOptions{
		MusicDir:     settings.Catalog.MusicDir,
		CoverDir:     settings.Catalog.CoverDir,
		MetadataDir:  settings.Catalog.MetadataDir,
		IndexName:    settings.Catalog.MetadataIndex,
		ManifestPath: settings.Catalog.SongsPath,
	}, onProgress)

	discord := auth.NewDiscord(settings.Discord.ClientID, settings.Discord.RedirectURI,
		auth.WithDiscordHTTPClient(hc),
	)
	gate := auth.NewGate(discord, store, settings.Discord.AllowedUserID)

	ctrl := NewController(aggregator, publisher, gate, settings.Catalog.PerPage)
	ctrl.SetRepositoryToken(settings.GitHub.Token)

	return &Services{
		Settings:   settings,
		HTTP:       hc,
		GitHub:     gh,
		Resolver:   resolver,
		Aggregator: aggregator,
		Publisher:  publisher,
		Gate:       gate,
		Controller: ctrl,
	}, nil
}

// OpenSessionStore opens the persistent session file, falling back to an
// in-memory store when no state directory is available.
func OpenSessionStore() (*auth.SessionStore, error) {
	path, err := auth.DefaultSessionPath()
	if err != nil {
		return auth.NewMemoryStore(), nil
	}
	store, err := auth.OpenFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", path, err)
	}
	return store, nil
}
