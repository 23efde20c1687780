// Package main provides the entry point for the narrato CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yamunaarun/narrato-audio-book/internal/cache"
	"github.com/yamunaarun/narrato-audio-book/internal/connectivity"
	"github.com/yamunaarun/narrato-audio-book/narrate"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	userName    string
	dataDir     string
	voiceName   string
	playRate    float64
	backendMode string
	noResume    bool
	debug       bool

	rootCmd = &cobra.Command{
		Use:   "narrato [DOCUMENT]",
		Short: "Read documents aloud from the command line",
		Long: paragraph(
			fmt.Sprintf("\nRead documents %s from the command line. Name a file to import and play it, or match a library document by title.", keyword("aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	userName = resolveUser()

	dir, err := resolveDataDir()
	if err != nil {
		return err
	}
	dataDir = dir

	backendMode = viper.GetString("backend")
	switch backendMode {
	case "", "auto", "remote", "local":
	default:
		return fmt.Errorf("invalid backend %q: must be auto, remote or local", backendMode)
	}
	return nil
}

// resolveUser names the local principal the library belongs to.
func resolveUser() string {
	if u := viper.GetString("user"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

// resolveDataDir picks the directory holding the library database and
// the audio cache.
func resolveDataDir() (string, error) {
	if d := viper.GetString("data_dir"); d != "" {
		return homedir.Expand(d)
	}

	scope := gap.NewScope(gap.User, "narrato")
	if dir, err := scope.DataPath(""); err == nil && dir != "" {
		return dir, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("unable to find home directory: %w", err)
	}
	return filepath.Join(home, ".narrato"), nil
}

// buildNarrateConfig assembles narration settings. Environment values
// come first, then the config file, then flags on top.
func buildNarrateConfig(cmd *cobra.Command) (narrate.Config, error) {
	cfg, err := env.ParseAs[narrate.Config]()
	if err != nil {
		return narrate.Config{}, fmt.Errorf("error parsing config: %v", err)
	}
	if cfg.Remote.URL == "" {
		cfg.Remote.URL = narrate.DefaultRemoteConfig().URL
	}
	if cfg.Local.Binary == "" {
		cfg.Local.Binary = narrate.DefaultLocalConfig().Binary
	}

	if v := viper.GetString("voice"); v != "" {
		cfg.Voice = v
	}
	if r := viper.GetFloat64("rate"); r != 0 {
		cfg.Rate = r
	}
	if viper.IsSet("max_chunk_len") {
		cfg.MaxChunkLen = viper.GetInt("max_chunk_len")
	}
	if viper.IsSet("repeat") {
		cfg.Repeat = viper.GetBool("repeat")
	}
	if viper.IsSet("auto_play") {
		cfg.AutoPlay = viper.GetBool("auto_play")
	}

	if viper.IsSet("remote.url") {
		cfg.Remote.URL = viper.GetString("remote.url")
	}
	if viper.IsSet("remote.api_key") {
		cfg.Remote.APIKey = viper.GetString("remote.api_key")
	}
	if viper.IsSet("remote.model") {
		cfg.Remote.Model = viper.GetString("remote.model")
	}
	if viper.IsSet("remote.voice") {
		cfg.Remote.Voice = viper.GetString("remote.voice")
	}
	if viper.IsSet("remote.timeout") {
		cfg.Remote.Timeout = viper.GetDuration("remote.timeout")
	}
	if viper.IsSet("remote.requests_per_minute") {
		cfg.Remote.RequestsPerMinute = viper.GetInt("remote.requests_per_minute")
	}

	if viper.IsSet("local.binary") {
		cfg.Local.Binary = viper.GetString("local.binary")
	}
	if viper.IsSet("local.voice") {
		cfg.Local.Voice = viper.GetString("local.voice")
	}
	if viper.IsSet("local.pitch") {
		cfg.Local.Pitch = viper.GetFloat64("local.pitch")
	}
	if viper.IsSet("local.volume") {
		cfg.Local.Volume = viper.GetFloat64("local.volume")
	}
	if viper.IsSet("local.words_per_minute") {
		cfg.Local.WordsPerMinute = viper.GetInt("local.words_per_minute")
	}

	if cmd.Flags().Changed("voice") {
		cfg.Voice = voiceName
	}
	if cmd.Flags().Changed("rate") {
		cfg.Rate = playRate
	}

	if err := cfg.Validate(); err != nil {
		return narrate.Config{}, err
	}
	return cfg, nil
}

// buildConnectivityConfig assembles the reachability probe settings.
func buildConnectivityConfig() (connectivity.Config, error) {
	cfg, err := env.ParseAs[connectivity.Config]()
	if err != nil {
		return connectivity.Config{}, fmt.Errorf("error parsing config: %v", err)
	}
	if cfg.URL == "" {
		cfg.URL = connectivity.DefaultConfig().URL
	}

	if viper.IsSet("connectivity.url") {
		cfg.URL = viper.GetString("connectivity.url")
	}
	if viper.IsSet("connectivity.interval") {
		cfg.Interval = viper.GetDuration("connectivity.interval")
	}
	if viper.IsSet("connectivity.timeout") {
		cfg.Timeout = viper.GetDuration("connectivity.timeout")
	}

	if err := cfg.Validate(); err != nil {
		return connectivity.Config{}, err
	}
	return cfg, nil
}

// buildCacheConfig sizes the audio cache. Its disk layer defaults into
// the data directory.
func buildCacheConfig(dataDir string) (cache.Config, error) {
	cfg := cache.DefaultConfig()
	cfg.Dir = filepath.Join(dataDir, "cache")

	if viper.IsSet("cache.dir") {
		dir, err := homedir.Expand(viper.GetString("cache.dir"))
		if err != nil {
			return cache.Config{}, fmt.Errorf("cache dir: %w", err)
		}
		cfg.Dir = dir
	}
	if viper.IsSet("cache.memory_mb") {
		cfg.MemoryCapacity = int64(viper.GetInt("cache.memory_mb")) * 1024 * 1024
	}
	if viper.IsSet("cache.disk_mb") {
		cfg.DiskCapacity = int64(viper.GetInt("cache.disk_mb")) * 1024 * 1024
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}
	if viper.IsSet("cache.ttl") {
		cfg.TTL = viper.GetDuration("cache.ttl")
	}
	if viper.IsSet("cache.cleanup_interval") {
		cfg.CleanupInterval = viper.GetDuration("cache.cleanup_interval")
	}
	return cfg, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	ctx := cmd.Context()

	// if stdin is a pipe, narrate it as a transient library document
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		doc, err := a.lib.ImportReader(ctx, a.user, "stdin", os.Stdin, "txt")
		if err != nil {
			return err
		}
		return runPlayer(cmd, a, doc)
	}

	// without an argument, show the library instead of guessing
	if len(args) == 0 {
		return showLibrary(ctx, a)
	}

	doc, err := a.resolveDocument(ctx, args[0])
	if err != nil {
		return err
	}
	return runPlayer(cmd, a, doc)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	_ = godotenv.Load()
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "user the library belongs to (default $USER)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output")
	_ = rootCmd.PersistentFlags().MarkHidden("debug")
	rootCmd.Flags().StringVarP(&voiceName, "voice", "v", "", "voice to narrate with")
	rootCmd.Flags().Float64VarP(&playRate, "rate", "r", 0, "playback rate, 0.5 to 2.0")
	rootCmd.Flags().StringVarP(&backendMode, "backend", "b", "auto", "voice backend (auto, remote or local)")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "ignore the saved playback position")

	// Config bindings
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("backend", rootCmd.Flags().Lookup("backend"))

	viper.SetDefault("backend", "auto")
	viper.SetDefault("language", "en")

	rootCmd.AddCommand(addCmd, listCmd, editCmd, bookmarksCmd, serveCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "narrato")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find the configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrato")}, dirs...)
	}

	if c := os.Getenv("NARRATO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrato")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrato")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "narrato.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
