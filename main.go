// Package main provides the entry point for the maze game.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mazeofme/maze/internal/generator"
	"github.com/mazeofme/maze/ui"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool

	rootCmd = &cobra.Command{
		Use:   "maze",
		Short: "Walk a maze built from your own life",
		Long: paragraph(
			fmt.Sprintf("\nWalk a maze %s, with music to match every room.", keyword("built from your own life")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateBackend(name string) error {
	switch strings.ToLower(name) {
	case generator.BackendOpenAI, generator.BackendLocal, generator.BackendGemini, generator.BackendScripted, "":
		return nil
	}
	return fmt.Errorf("%w: %q", generator.ErrUnknownBackend, name)
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(expandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	setLogLevel(viper.GetBool("debug"))

	if err := validateBackend(viper.GetString("generator.backend")); err != nil {
		return err
	}
	if viper.GetInt("generator.requests_per_minute") < 0 {
		return errors.New("generator.requests_per_minute must not be negative")
	}
	if viper.GetInt64("cache.max_size") < 0 {
		return errors.New("cache.max_size must not be negative")
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	tty := isTerminal(os.Stdout)
	if !tty && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if tty && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 100 {
				width = 100
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func execute(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdout) {
		return errors.New("maze needs an interactive terminal")
	}

	s, err := newSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("unable to close session", "error", err)
		}
	}()

	return runTUI(s)
}

func runTUI(s *session) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the validated flag if unset
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = style
	}
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	cfg.Session = s.id

	if _, err := ui.NewProgram(s.ctx, cfg, s.engine).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func expandPath(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return os.ExpandEnv(p)
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
	// API keys usually live in a .env file next to the profile.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Could not parse .env:", err)
	}

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
	rootCmd.PersistentFlags().Bool("debug", false, "write debug messages to the log file")
	rootCmd.PersistentFlags().StringP("profile", "p", "", "profile JSON written by the collector")
	rootCmd.Flags().StringP("backend", "b", "", "text generator: openai, local, gemini or scripted")
	rootCmd.Flags().String("music-dir", "", "play from a local music directory instead of the profile's top tracks")
	rootCmd.Flags().Bool("no-music", false, "disable music")
	rootCmd.Flags().Bool("silent", false, "prepare music without opening the audio device")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path for the help view")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("generator.backend", rootCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("music.dir", rootCmd.Flags().Lookup("music-dir"))
	_ = viper.BindPFlag("music.disabled", rootCmd.Flags().Lookup("no-music"))
	_ = viper.BindPFlag("music.silent", rootCmd.Flags().Lookup("silent"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("profile", "profile.json")
	viper.SetDefault("generator.backend", generator.BackendScripted)
	viper.SetDefault("generator.openai.model", generator.DefaultOpenAIModel)
	viper.SetDefault("generator.local.url", generator.DefaultLocalURL)
	viper.SetDefault("generator.gemini.model", generator.DefaultGeminiModel)
	viper.SetDefault("generator.requests_per_minute", 30)
	viper.SetDefault("generator.offline_fallback", true)
	viper.SetDefault("generator.max_failures", 3)
	viper.SetDefault("generator.log_completions", false)
	viper.SetDefault("narrative.talk_timeout", "8s")
	viper.SetDefault("music.ahead", 2)
	viper.SetDefault("music.play_wait", "3s")
	viper.SetDefault("cache.max_size", 512)
	viper.SetDefault("cache.max_age", "720h")
	viper.SetDefault("journal.enabled", true)

	rootCmd.AddCommand(configCmd, manCmd, journalCmd, doctorCmd, catalogCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "maze")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "maze")}, dirs...)
	}

	if c := os.Getenv("MAZE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("maze")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("maze")
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
		configFile = filepath.Join(dirs[0], "maze.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
