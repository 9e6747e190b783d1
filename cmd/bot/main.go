// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/tunebox/internal/api/connect"
	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/jukebox"
	"github.com/osa030/tunebox/internal/app/resolver"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/discord"
	"github.com/osa030/tunebox/internal/infra/health"
	"github.com/osa030/tunebox/internal/infra/logger"
	"github.com/osa030/tunebox/internal/infra/observe"
	"github.com/osa030/tunebox/internal/infra/spotify"
	"github.com/osa030/tunebox/internal/infra/ytdlp"
)

var version = "dev"

var (
	app        = kingpin.New("tunebox", "tunebox Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logFormat  = app.Flag("log-format", "Console log format").Default("console").Enum("console", "json")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Version(version)
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		Format: *logFormat,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = closeLog() }()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		_ = closeLog()
		os.Exit(1)
	}
}

// run wires every component and blocks until a shutdown signal arrives or
// a component fails.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	// Metrics
	mp, shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "tunebox",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			zlog.Warn().Msgf("Failed to shutdown metrics: %v", err)
		}
	}()
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return err
	}

	// Track resolution
	extractor := ytdlp.NewClient(ytdlp.Config{
		Path:   cfg.Resolver.YTDLPPath,
		Format: cfg.Resolver.Format,
	})
	var spotifyClient resolver.SpotifyClient
	if cfg.Spotify.Enabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		spotifyClient = client
	}
	chain, err := resolver.NewChainFromConfig(cfg, extractor, spotifyClient)
	if err != nil {
		return err
	}
	pool := resolver.NewPool(chain, cfg.Resolver.Workers, cfg.Resolver.Timeout(), metrics.ObserveResolve)

	// Discord
	bot, err := discord.New(discord.Config{
		Token:    cfg.Discord.Token,
		GuildIDs: cfg.Discord.GuildIDs,
	})
	if err != nil {
		return err
	}
	voice := discord.NewVoice(bot.Session(), discord.VoiceConfig{
		FFmpegPath:  cfg.Playback.FFmpegPath,
		BitrateKbps: cfg.Playback.BitrateKbps,
	})

	jb, err := jukebox.NewManager(cfg, voice, pool, metrics)
	if err != nil {
		return errors.Wrap(err, "failed to create jukebox")
	}
	if err := metrics.RegisterGauges(jb.ActivePlayers, jb.QueuedTracks); err != nil {
		return err
	}
	discord.NewMusicCommands(jb.Commands(), metrics).Register(bot.Router())

	// Admin API, metrics and health share one h2c listener
	mux := http.NewServeMux()
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		apiconnect.NewAdminService(jb),
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	mux.Handle(adminPath, adminHandler)
	if cfg.Metrics.IsEnabled() {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	health.New(
		health.Checker{Name: "discord", Check: bot.Ready},
		health.Checker{Name: "jukebox", Check: jb.Ready},
		health.Checker{Name: "ffmpeg", Check: binaryCheck(cfg.Playback.FFmpegPath)},
		health.Checker{Name: "yt-dlp", Check: func(context.Context) error { return extractor.Available() }},
	).Register(mux)

	server := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	jb.Start()
	if err := bot.Open(); err != nil {
		jb.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		zlog.Info().Msgf("Starting admin server: addr=%s", cfg.Admin.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "admin server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Players leave voice before the gateway closes
		jb.Close()
		if err := bot.Close(); err != nil {
			zlog.Error().Msgf("Failed to close discord: %v", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown admin server: %v", err)
		}
		return nil
	})

	executeHooks(cfg.Hooks.OnStarted, "on_started")

	err = g.Wait()
	zlog.Info().Msg("Bot stopped")
	executeHooks(cfg.Hooks.OnStopped, "on_stopped")
	return err
}

// binaryCheck reports whether an executable can be found.
func binaryCheck(path string) func(context.Context) error {
	return func(context.Context) error {
		if _, err := exec.LookPath(path); err != nil {
			return errors.Wrapf(err, "%s not found", path)
		}
		return nil
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.RegisteredNames() {
		f := registry[name](filter.Deps{})
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			return errors.Newf("unknown filter: %s", filterName)
		}

		f := factory(filter.Deps{})
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
