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

const defaultConfig = `# profile written by the collector
profile: "profile.json"
# style name or JSON path for the help view (default "auto")
style: "auto"
# word-wrap at width (0 detects the terminal width)
width: 0
# mouse support
mouse: false
# write debug messages to the log file
debug: false

generator:
  # openai, local, gemini or scripted
  backend: "scripted"
  # calls per minute to remote backends (0 disables the limit)
  requests_per_minute: 30
  # switch to offline lines after repeated failures
  offline_fallback: true
  max_failures: 3
  # keep every prompt and reply in completions.db
  log_completions: false
  openai:
    model: "gpt-4o-mini"
  local:
    url: "http://127.0.0.1:8080/v1"
    model: ""
  gemini:
    model: "gemini-1.5-flash"

narrative:
  # how long to wait for the figure before a fallback line
  talk_timeout: "8s"

music:
  # play from a local directory instead of the profile's top tracks
  dir: ""
  disabled: false
  # prepare tracks without opening the audio device
  silent: false
  # tracks buffered ahead of the current one
  ahead: 2
  # how long a room waits for an unbuffered track
  play_wait: "3s"

cache:
  # defaults to the user cache directory
  dir: ""
  # megabytes of audio kept on disk (0 is unbounded)
  max_size: 512
  # tracks older than this are removed at startup
  max_age: "720h"

journal:
  enabled: true
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the maze config file",
	Long:    paragraph(fmt.Sprintf("\n%s the maze config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("maze config\nmaze config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Maze", configFile)
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
