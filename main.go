// Package main provides the entry point for the voiceverse CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/voiceverse/voiceverse/cursor"
	"github.com/voiceverse/voiceverse/document"
	"github.com/voiceverse/voiceverse/speech"
	"github.com/voiceverse/voiceverse/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	engineName  string
	startPage   int
	autoAdvance bool
	autoplay    bool
	plain       bool
	watch       bool
	resume      bool
	debug       bool
	mouse       bool

	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "voiceverse [FILE|-]",
		Short: "Read documents aloud, one sentence at a time",
		Long: paragraph(
			fmt.Sprintf("\nRead text and EPUB documents %s, sentence by sentence.\nPipe pdftotext output in to read a PDF.", keyword("aloud")),
		),
		Example:          paragraph("voiceverse novel.epub\npdftotext book.pdf - | voiceverse --engine piper"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"txt", "text", "epub"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	engineName = viper.GetString("engine")
	startPage = viper.GetInt("start_page")
	autoAdvance = viper.GetBool("auto_advance")
	autoplay = viper.GetBool("autoplay")
	plain = viper.GetBool("plain")
	watch = viper.GetBool("watch")
	resume = viper.GetBool("resume")
	debug = viper.GetBool("debug")
	mouse = viper.GetBool("mouse")

	closer, err := setupLog(debug)
	if err != nil {
		return err
	}
	logCloser = closer

	if startPage < 1 {
		return fmt.Errorf("start page must be 1 or greater, got %d", startPage)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		plain = true
	}
	return nil
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

// sourceArg returns the document argument, "-" for piped input.
func sourceArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	yes, err := stdinIsPipe()
	if err != nil {
		return "", err
	}
	if yes {
		return "-", nil
	}
	return "", errors.New("missing document: pass a file or pipe text on stdin")
}

func execute(cmd *cobra.Command, args []string) error {
	if err := validateEngineConfig(engineName); err != nil {
		return err
	}

	path, err := sourceArg(args)
	if err != nil {
		return err
	}

	doc, err := document.OpenFile(path)
	if err != nil {
		return err
	}
	for _, s := range document.Stats(doc, 5) {
		log.Debug("Page sentences", "page", s.Page+1, "sentences", s.Sentences, "runes", s.Runes)
	}

	var positions *document.Positions
	page := startPage - 1
	if resume {
		positions, err = loadPositions()
		if err != nil {
			log.Warn("Reading positions unavailable", "error", err)
		} else if saved, ok := positions.Get(doc); ok && !cmd.Flags().Changed("page") && saved < doc.PageCount() {
			log.Info("Resuming", "title", doc.Title, "page", saved+1)
			page = saved
		}
	}
	if doc.PageCount() > 0 && page >= doc.PageCount() {
		return fmt.Errorf("start page %d is past the last page (%d)", page+1, doc.PageCount())
	}

	engine, closeEngine, err := newEngine(engineName)
	if err != nil {
		return err
	}
	defer closeEngine() //nolint:errcheck

	driver := speech.NewDriver(cursor.New(), engine, doc, speech.WithConfig(speech.Config{
		StartPage:   page,
		AutoAdvance: autoAdvance,
		Lookahead:   viper.GetInt("lookahead"),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if plain {
		return ui.RunPlain(ctx, driver, os.Stdout)
	}
	return runTUI(ctx, path, doc, driver, positions)
}

func runTUI(ctx context.Context, path string, doc *document.Document, driver *speech.Driver, positions *document.Positions) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Autoplay = autoplay
	cfg.EnableMouse = cfg.EnableMouse || mouse

	if !debug {
		// the TUI owns the terminal
		log.SetOutput(io.Discard)
	}

	opts := ui.Options{
		Driver:    driver,
		Document:  doc,
		Positions: positions,
	}
	if watch && path != "-" {
		w, err := document.NewWatcher(path)
		if err != nil {
			log.Warn("Not watching document", "error", err)
		} else {
			defer w.Close() //nolint:errcheck
			go w.Run(ctx)
			opts.Updates = w.Updates()
		}
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, opts).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func loadPositions() (*document.Positions, error) {
	path, err := document.DefaultPositionsPath()
	if err != nil {
		return nil, err
	}
	return document.LoadPositions(path), nil
}

func main() {
	err := rootCmd.Execute()
	_ = logCloser()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
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
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write a debug log")
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "auto", "speech engine (auto, piper, gtts, say or mock)")
	rootCmd.Flags().IntVarP(&startPage, "page", "p", 1, "page to start reading at")
	rootCmd.Flags().BoolVar(&autoAdvance, "auto-advance", true, "continue on the next page when a page is finished")
	rootCmd.Flags().BoolVarP(&autoplay, "autoplay", "a", true, "start reading immediately (TUI-mode only)")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "print sentences instead of running the TUI")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", true, "reload the document when the file changes (TUI-mode only)")
	rootCmd.Flags().BoolVar(&resume, "resume", true, "resume at the page where reading last stopped")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("start_page", rootCmd.Flags().Lookup("page"))
	_ = viper.BindPFlag("auto_advance", rootCmd.Flags().Lookup("auto-advance"))
	_ = viper.BindPFlag("autoplay", rootCmd.Flags().Lookup("autoplay"))
	_ = viper.BindPFlag("plain", rootCmd.Flags().Lookup("plain"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("resume", rootCmd.Flags().Lookup("resume"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults()

	rootCmd.AddCommand(configCmd, manCmd, splitCmd)
}

func setDefaults() {
	viper.SetDefault("engine", "auto")
	viper.SetDefault("start_page", 1)
	viper.SetDefault("auto_advance", true)
	viper.SetDefault("autoplay", true)
	viper.SetDefault("watch", true)
	viper.SetDefault("resume", true)
	viper.SetDefault("lookahead", 2)

	viper.SetDefault("say.voice", "")
	viper.SetDefault("say.rate", 200)
	viper.SetDefault("piper.binary", "piper")
	viper.SetDefault("piper.model", "")
	viper.SetDefault("piper.speed", 1.0)
	viper.SetDefault("piper.sample_rate", 22050)
	viper.SetDefault("piper.timeout", "30s")
	viper.SetDefault("gtts.binary", "gtts-cli")
	viper.SetDefault("gtts.ffmpeg", "ffmpeg")
	viper.SetDefault("gtts.lang", "zh-CN")
	viper.SetDefault("gtts.speed", 1.0)
	viper.SetDefault("gtts.sample_rate", 22050)
	viper.SetDefault("gtts.timeout", "10s")
	viper.SetDefault("mock.delay", "1s")
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.memory_mb", 32)
	viper.SetDefault("cache.disk_mb", 512)
	viper.SetDefault("cache.compression_level", 3)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voiceverse")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voiceverse")}, dirs...)
	}

	if c := os.Getenv("VOICEVERSE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voiceverse")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voiceverse")
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

	configFile = filepath.Join(dirs[0], "voiceverse.yml")
}
