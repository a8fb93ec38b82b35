package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fifosk/ebook-tools-sub003/internal/config"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/metadata"
)

type metadataOptions struct {
	configPath string
	mediaType  string
	title      string
	author     string
	isbn       string
	series     string
	season     int
	episode    int
	year       int
	youtubeID  string
	imdbID     string
	tmdbID     string

	maxSources   int
	skipCache    bool
	withFallback bool
}

func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Query external metadata catalogs",
	}
	cmd.AddCommand(newMetadataLookupCmd(), newMetadataCleanupCmd())
	return cmd
}

func newMetadataLookupCmd() *cobra.Command {
	opts := metadataOptions{}
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up unified metadata for a book, movie, series, or video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetadataLookup(cmd, &opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file path")
	f.StringVar(&opts.mediaType, "type", "book", "media type (book|movie|tv_series|tv_episode|youtube_video)")
	f.StringVar(&opts.title, "title", "", "title to search for")
	f.StringVar(&opts.author, "author", "", "author (books)")
	f.StringVar(&opts.isbn, "isbn", "", "ISBN (books)")
	f.StringVar(&opts.series, "series", "", "series name (tv episodes)")
	f.IntVar(&opts.season, "season", 0, "season number")
	f.IntVar(&opts.episode, "episode", 0, "episode number")
	f.IntVar(&opts.year, "year", 0, "release year hint")
	f.StringVar(&opts.youtubeID, "youtube-id", "", "YouTube video id")
	f.StringVar(&opts.imdbID, "imdb-id", "", "IMDb id")
	f.StringVar(&opts.tmdbID, "tmdb-id", "", "TMDB id")
	f.IntVar(&opts.maxSources, "max-sources", 0, "cap on providers consulted")
	f.BoolVar(&opts.skipCache, "skip-cache", false, "bypass the metadata cache")
	f.BoolVar(&opts.withFallback, "with-fallback", false, "return an annotated empty result instead of nothing")
	return cmd
}

func runMetadataLookup(cmd *cobra.Command, opts *metadataOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	query := metadata.Query{
		MediaType:      metadata.MediaType(opts.mediaType),
		Title:          opts.title,
		Author:         opts.author,
		ISBN:           opts.isbn,
		SeriesName:     opts.series,
		Season:         opts.season,
		Episode:        opts.episode,
		Year:           opts.year,
		YouTubeVideoID: opts.youtubeID,
		IMDBID:         opts.imdbID,
		TMDBID:         opts.tmdbID,
	}

	pipeline := metadata.NewPipeline(metadataCache(cfg), buildProviders()...)
	result := pipeline.Lookup(cmd.Context(), query, metadata.Options{
		MaxSources:   opts.maxSources,
		SkipCache:    opts.skipCache,
		WithFallback: opts.withFallback,
	})
	if result == nil {
		return fmt.Errorf("no metadata found")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newMetadataCleanupCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired metadata cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			removed, err := metadataCache(cfg).CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries\n", removed)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "config file path")
	return cmd
}

func metadataCache(cfg config.Config) *metadata.Cache {
	dir := cfg.MetadataCacheDir
	if dir == "" {
		dir = filepath.Join(cfg.WorkingDir, "metadata_cache")
	}
	return metadata.NewCache(dir, metadata.DefaultCacheTTL)
}

// buildProviders assembles every provider; the keyed ones stay
// unavailable when no secret resolves.
func buildProviders() []metadata.Provider {
	tmdbKey := resolveOptionalSecret(config.SecretTMDBAPIKey)
	omdbKey := resolveOptionalSecret(config.SecretOMDbAPIKey)
	return []metadata.Provider{
		metadata.NewOpenLibrary(),
		metadata.NewGoogleBooks(),
		metadata.NewWikipedia(),
		metadata.NewTMDB(tmdbKey),
		metadata.NewOMDb(omdbKey),
		metadata.NewTVMaze(),
		metadata.NewYTDLP(),
	}
}

func resolveOptionalSecret(name string) string {
	key, err := config.ResolveSecret(name)
	if err != nil {
		logger.Debug("Secret lookup failed", "name", name, "error", err)
		return ""
	}
	return key
}
