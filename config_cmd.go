package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# voice to narrate with (default: the backend picks)
# voice: "alloy"
# playback rate multiplier, 0.5 to 2.0
rate: 1.0
# longest chunk handed to a voice backend, in characters
max_chunk_len: 200
# repeat the selection when it ends
repeat: false
# start speaking as soon as a document opens
auto_play: false
# voice backend: auto, remote or local
backend: "auto"
# language used for imported documents without one
language: "en"
# user the library belongs to (default $USER)
# user: "reader"
# where the library database and audio cache live
# data_dir: "~/.local/share/narrato"

# Remote synthesis backend
remote:
  url: "https://api.openai.com/v1/audio/speech"
  # api_key: "your-api-key-here"
  model: "tts-1"
  voice: "alloy"
  timeout: "30s"
  requests_per_minute: 60

# Platform speech backend
local:
  # binary: "espeak-ng"
  # voice: "en-us"
  pitch: 1.0
  volume: 1.0
  words_per_minute: 175

# Synthesized audio cache
cache:
  # dir: "~/.local/share/narrato/cache"
  memory_mb: 64
  disk_mb: 1024
  compression_level: 3
  ttl: "720h"
  cleanup_interval: "1h"

# Network reachability probe, used to pick remote vs. local
connectivity:
  url: "https://connectivitycheck.gstatic.com/generate_204"
  interval: "30s"
  timeout: "3s"

# Markdown extraction
document:
  include_code: false
  announce_links: true
  announce_images: true
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the narrato config file",
	Long:    paragraph(fmt.Sprintf("\n%s the narrato config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("narrato config\nnarrato config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Narrato", configFile)
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
