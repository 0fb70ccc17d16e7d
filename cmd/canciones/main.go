package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/thegaspygames/canciones/internal/app"
	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/catalog"
	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/download"
	"github.com/thegaspygames/canciones/internal/errmsg"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
	"github.com/thegaspygames/canciones/internal/scan"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F8B500"))
)

func usage() {
	fmt.Println("canciones - browse, mirror and publish the song catalog")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  canciones [options] <command> [command options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list      list the catalog, filtered and paginated")
	fmt.Println("  download  mirror the catalog into a local directory")
	fmt.Println("  login     log in with Discord")
	fmt.Println("  logout    forget the stored session")
	fmt.Println("  whoami    show the logged in account")
	fmt.Println("  publish   upload a song (requires login)")
	fmt.Println("  scan      build a songs manifest from a local music folder")
	fmt.Println()
	fmt.Println("For interactive mode, use: canciones-tui")
	fmt.Println()
	flag.PrintDefaults()
}

func main() {
	var (
		configFlag  = flag.String("config", "", "Path to config file")
		verboseFlag = flag.Bool("verbose", false, "Show verbose output")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fail(errmsg.OpConfigLoad, err)
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	onProgress := printer(*verboseFlag)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "scan" {
		err = runScan(ctx, args, onProgress)
	} else {
		err = run(ctx, cmd, args, settings, onProgress)
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			os.Exit(130)
		}
		var cmdErr *commandError
		if errors.As(err, &cmdErr) {
			fail(cmdErr.op, cmdErr.err)
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// commandError ties a failure to the operation that produced it.
type commandError struct {
	op  errmsg.Op
	err error
}

func (e *commandError) Error() string { return errmsg.Format(e.op, e.err) }

func (e *commandError) Unwrap() error { return e.err }

func wrap(op errmsg.Op, err error) error {
	if err == nil {
		return nil
	}
	return &commandError{op: op, err: err}
}

func fail(op errmsg.Op, err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(errmsg.Format(op, err)))
	os.Exit(1)
}

func printer(verbose bool) progress.Func {
	return func(event progress.Event) {
		if event.Level == progress.LevelVerbose && !verbose {
			return
		}

		var style lipgloss.Style
		prefix := "  "
		switch event.Level {
		case progress.LevelError:
			style, prefix = errorStyle, "✗ "
		case progress.LevelWarning:
			style, prefix = warningStyle, "! "
		case progress.LevelSuccess:
			style, prefix = successStyle, "✓ "
		case progress.LevelInfo:
			style, prefix = infoStyle, "› "
		default:
			style = dimStyle
		}

		fmt.Println(style.Render(prefix + event.Message))
	}
}

func run(ctx context.Context, cmd string, args []string, settings *config.Settings, onProgress progress.Func) error {
	store, err := app.OpenSessionStore()
	if err != nil {
		return wrap(errmsg.OpInitialize, err)
	}
	svc, err := app.NewServices(settings, store, onProgress)
	if err != nil {
		return wrap(errmsg.OpInitialize, err)
	}

	switch cmd {
	case "list":
		return runList(ctx, svc, args)
	case "download":
		return runDownload(ctx, svc, args, onProgress)
	case "login":
		return runLogin(ctx, svc)
	case "logout":
		return wrap(errmsg.OpLogout, svc.Gate.Logout())
	case "whoami":
		return runWhoami(ctx, svc)
	case "publish":
		return runPublish(ctx, svc, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func queryFlags(fs *flag.FlagSet) func() model.Query {
	search := fs.String("search", "", "Only titles containing this text")
	genre := fs.String("genre", model.All, "Only this genre")
	aiModel := fs.String("model", model.All, "Only this AI model")
	return func() model.Query {
		return model.Query{Search: *search, Genre: *genre, Model: *aiModel}
	}
}

func runList(ctx context.Context, svc *app.Services, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	query := queryFlags(fs)
	page := fs.Int("page", 1, "Page number")
	showFacets := fs.Bool("facets", false, "List the available genres and models")
	fs.Parse(args)

	ctrl := svc.Controller
	if err := ctrl.Refresh(ctx); err != nil {
		return wrap(errmsg.OpCatalogLoad, err)
	}

	if *showFacets {
		fmt.Println(titleStyle.Render("Genres"))
		for _, g := range ctrl.Genres() {
			fmt.Println("  " + g)
		}
		fmt.Println(titleStyle.Render("Models"))
		for _, m := range ctrl.Models() {
			fmt.Println("  " + m)
		}
		return nil
	}

	p := ctrl.SetQuery(query())
	for i := 1; i < *page && p.HasNext(); i++ {
		p = ctrl.NextPage()
	}

	if p.Count == 0 {
		fmt.Println(warningStyle.Render("No songs found"))
		return nil
	}
	for _, s := range p.Songs {
		fmt.Printf("%s  %s\n", titleStyle.Render(s.Title), dimStyle.Render(strings.Join([]string{s.Date, s.Genre, s.AIModel, model.FormatSize(s.Size)}, " · ")))
		fmt.Println(dimStyle.Render("    " + s.File))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render(fmt.Sprintf("Page %d of %d (%d songs)", p.Number, p.Total, p.Count)))
	return nil
}

func runDownload(ctx context.Context, svc *app.Services, args []string, onProgress progress.Func) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	query := queryFlags(fs)
	output := fs.String("output", "", "Output directory (overrides config)")
	playlist := fs.Bool("playlist", false, "Create playlist file")
	dryRun := fs.Bool("dry-run", false, "List the selection without downloading")
	fs.Parse(args)

	settings := svc.Settings.Download
	if *output != "" {
		settings.Path = *output
	}
	if *playlist {
		settings.CreatePlaylist = true
	}

	manager := download.NewManager(&settings, svc.Aggregator, svc.HTTP, onProgress)
	if err := manager.Initialize(ctx, query()); err != nil {
		return wrap(errmsg.OpDownload, err)
	}

	if *dryRun {
		fmt.Println("\n[Dry run - not downloading]")
		return nil
	}

	if err := manager.StartDownloads(ctx); err != nil {
		return wrap(errmsg.OpDownload, err)
	}

	received, total, filesReceived, filesTotal := manager.GetProgress()
	fmt.Println()
	fmt.Println(successStyle.Render(fmt.Sprintf("Complete! Downloaded %d/%d files (%s)", filesReceived, filesTotal, model.FormatSize(received))))
	if total > 0 && received < total {
		fmt.Println(dimStyle.Render(fmt.Sprintf("   (%s expected)", model.FormatSize(total))))
	}
	if path := manager.PlaylistPath(); path != "" {
		fmt.Println(dimStyle.Render("Playlist: " + path))
	}
	return nil
}

func runLogin(ctx context.Context, svc *app.Services) error {
	if err := svc.Settings.ValidateDiscord(); err != nil {
		return wrap(errmsg.OpLogin, err)
	}

	redirect := svc.Settings.Discord.RedirectURI
	var server *auth.CallbackServer
	if auth.IsLoopbackRedirect(redirect) {
		var err error
		server, err = auth.StartCallbackServer(redirect)
		if err != nil {
			return wrap(errmsg.OpLogin, err)
		}
		defer server.Shutdown()
	}

	authURL, err := svc.Gate.BeginLogin()
	if err != nil {
		return wrap(errmsg.OpLogin, err)
	}

	fmt.Println("Opening Discord in your browser. If it does not open, visit:")
	fmt.Println(infoStyle.Render(authURL))
	_ = auth.OpenBrowser(authURL)

	params, err := awaitRedirect(ctx, server)
	if err != nil {
		return wrap(errmsg.OpLogin, err)
	}

	profile, err := svc.Gate.CompleteLogin(ctx, params)
	if err != nil {
		return wrap(errmsg.OpLogin, err)
	}
	fmt.Println(successStyle.Render("Logged in as " + profile.DisplayName()))
	return nil
}

// awaitRedirect waits for the callback server or, without one, reads the
// redirected URL pasted by the user.
func awaitRedirect(ctx context.Context, server *auth.CallbackServer) (url.Values, error) {
	if server != nil {
		return server.Wait(ctx)
	}

	fmt.Println()
	fmt.Print("Paste the URL you were redirected to: ")
	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		lines <- line
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case line := <-lines:
		return auth.ParseRedirect(strings.TrimSpace(line))
	}
}

func runWhoami(ctx context.Context, svc *app.Services) error {
	profile, err := svc.Gate.Restore(ctx)
	if err != nil {
		return wrap(errmsg.OpRestore, err)
	}
	fmt.Printf("%s (%s) - %s\n", profile.DisplayName(), profile.ID, svc.Gate.State())
	return nil
}

func runPublish(ctx context.Context, svc *app.Services, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	audioPath := fs.String("audio", "", "Audio file to upload (required)")
	coverPath := fs.String("cover", "", "Cover image to upload")
	title := fs.String("title", "", "Song title (defaults to the audio file name)")
	genre := fs.String("genre", "", "Genre")
	aiModel := fs.String("model", "", "AI model used to create the song")
	message := fs.String("message", "", "Commit message of the audio upload")
	fs.Parse(args)

	if *audioPath == "" {
		fs.Usage()
		return errors.New("publish: -audio is required")
	}
	if err := svc.Settings.ValidatePublish(); err != nil {
		return wrap(errmsg.OpPublish, err)
	}
	if _, err := svc.Gate.Restore(ctx); err != nil {
		return wrap(errmsg.OpRestore, err)
	}

	audio, err := readAsset(*audioPath)
	if err != nil {
		return wrap(errmsg.OpReadAsset, err)
	}
	req := catalog.PublishRequest{
		Audio:         *audio,
		Title:         *title,
		Genre:         *genre,
		AIModel:       *aiModel,
		CommitMessage: *message,
	}
	if *coverPath != "" {
		if req.Cover, err = readAsset(*coverPath); err != nil {
			return wrap(errmsg.OpReadAsset, err)
		}
	}

	res, err := svc.Controller.Publish(ctx, req)
	if err != nil {
		return wrap(errmsg.OpPublish, err)
	}
	if res.ManifestErr != nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render(errmsg.Format(errmsg.OpManifestPut, res.ManifestErr)))
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Published %q", res.ClientRecord.Title)))
	fmt.Println(dimStyle.Render("  " + res.ClientRecord.File))
	return nil
}

func readAsset(path string) (*catalog.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &catalog.Asset{Name: filepath.Base(path), Data: data}, nil
}

func runScan(ctx context.Context, args []string, onProgress progress.Func) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dir := fs.String("dir", "music", "Local folder holding the audio files")
	out := fs.String("out", "songs.json", "Manifest file to write")
	musicDir := fs.String("music-dir", "", "Repository directory of the audio files (default: standard layout)")
	coverDir := fs.String("cover-dir", "", "Repository directory of the covers (default: standard layout)")
	fs.Parse(args)

	opts := scan.DefaultOptions()
	if *musicDir != "" {
		opts.MusicDir = *musicDir
	}
	if *coverDir != "" {
		opts.CoverDir = *coverDir
	}

	cat, err := scan.Generate(ctx, *dir, opts, onProgress)
	if err != nil {
		return wrap(errmsg.OpCatalogScan, err)
	}
	if err := scan.WriteCatalog(ctx, *out, cat); err != nil {
		return wrap(errmsg.OpCatalogScan, err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Wrote %d songs to %s", len(cat.Songs), *out)))
	return nil
}
