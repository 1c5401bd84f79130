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

const defaultConfig = `# Synthesis pipeline configuration
speech:
  # Ordered provider preference for fallback. Providers registered but not
  # listed here are tried after the chain, in registration order.
  chain: ["edge", "google", "mock"]
  # Per-provider invocation timeout
  provider_timeout: "10s"
  # Animation sampling rate in frames per second
  frame_rate: 30
  # Lip-sync shaping; zero values select the built-in defaults
  # lipsync_gamma: 0.5
  # lipsync_smoothing: 0.55

  # Result cache bounds
  cache_max_entries: 512
  cache_max_bytes: 67108864
  cache_max_age: "1h"
  cache_compression: true

providers:
  # edge-tts HTTP bridge (free tier)
  edge:
    base_url: "http://127.0.0.1:5500/synthesize"
    requests_per_minute: 0
  # Google Cloud Text-to-Speech (paid; uses application-default credentials)
  google:
    enabled: false
    requests_per_minute: 0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the voicemotion config file",
	Long:    "Edit the voicemotion config file. EDITOR determines which editor to use. If the config file doesn't exist, it will be created.",
	Example: "voicemotion config\nvoicemotion config --config path/to/voicemotion.yaml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voicemotion", configFile)
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
		if configFile == "" {
			configFile = "voicemotion.yaml"
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if dir := filepath.Dir(configFile); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("unable create directory: %w", err)
			}
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
