package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# speech engine: auto, piper, gtts, say or mock
engine: "auto"
# page to start reading at, when there is no saved position
start_page: 1
# continue on the next page when a page is finished
auto_advance: true
# start reading as soon as the document is open
autoplay: true
# print sentences instead of running the TUI
plain: false
# reload the document when the file changes
watch: true
# resume at the page where reading last stopped
resume: true
# sentences synthesized ahead of the one being spoken (piper only)
lookahead: 2

# macOS say
say:
  # voice name, see "say -v ?"; empty uses the system voice
  voice: ""
  # words per minute
  rate: 200

# piper (https://github.com/rhasspy/piper)
piper:
  binary: "piper"
  # path to the .onnx voice model
  model: ""
  # 1.0 is the voice's natural speed
  speed: 1.0
  # must match the model, usually 22050
  sample_rate: 22050
  # give up on a sentence after this long
  timeout: "30s"

# Google Translate voices through gtts-cli and ffmpeg (needs network)
gtts:
  binary: "gtts-cli"
  ffmpeg: "ffmpeg"
  lang: "zh-CN"
  # 0.5 to 2.0
  speed: 1.0
  sample_rate: 22050
  timeout: "10s"

# synthesized audio cache (piper only)
cache:
  # empty uses the user cache directory
  dir: ""
  memory_mb: 32
  disk_mb: 512
  # zstd level, 0 disables compression
  compression_level: 3
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voiceverse config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voiceverse config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voiceverse config\nvoiceverse config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voiceverse", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeSettings(cmd.OutOrStdout(), viper.AllSettings())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func writeSettings(w io.Writer, settings map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("unable to encode settings: %w", err)
	}
	return enc.Close()
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
