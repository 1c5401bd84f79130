// Package main provides the voicemotion command line tool: one-shot
// synthesis of an utterance into audio plus an animation/pose result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/saju-labs/voicemotion/speech"
	"github.com/saju-labs/voicemotion/speech/providers"
	"github.com/saju-labs/voicemotion/speech/providers/mock"
)

var (
	// Version as provided by goreleaser.
	Version = ""

	configFile  string
	language    string
	voice       string
	emotionHint string
	speed       float64
	audioOut    string
	trackOut    string
	useMock     bool
	verbose     bool

	rootCmd = &cobra.Command{
		Use:          "voicemotion TEXT",
		Short:        "Synthesize speech, lip-sync and avatar pose for an utterance",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default voicemotion.yaml)")
	rootCmd.Flags().StringVarP(&language, "language", "l", "ko-KR", "language tag")
	rootCmd.Flags().StringVar(&voice, "voice", "", "pinned voice (optional)")
	rootCmd.Flags().StringVar(&emotionHint, "emotion", "", "emotion hint for the avatar pose")
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "speech rate multiplier")
	rootCmd.Flags().StringVarP(&audioOut, "out", "o", "out.audio", "audio output file")
	rootCmd.Flags().StringVar(&trackOut, "track", "", "write the wire-format result JSON to this file")
	rootCmd.Flags().BoolVar(&useMock, "mock", false, "use the built-in mock provider only")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&configFile, "config", "", "config file (default voicemotion.yaml)")
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("voicemotion")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := speech.LoadConfigFromViper()
	if err != nil {
		return err
	}
	cfg, err = speech.LoadConfigFromEnv(cfg)
	if err != nil {
		return err
	}

	registry := speech.NewRegistry(cfg.Chain, cfg.ProviderTimeout, logger)
	if err := registerProviders(cmd.Context(), registry, logger); err != nil {
		return err
	}

	svc, err := speech.New(cfg, registry, nil, logger)
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	result, err := svc.Synthesize(ctx, speech.SynthesisRequest{
		Text:              args[0],
		Language:          language,
		Voice:             voice,
		Speed:             speed,
		EmotionHint:       emotionHint,
		EnableLipSync:     true,
		EnableExpressions: true,
		EnableMotions:     true,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(audioOut, result.Audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	logger.Info("wrote audio",
		"file", audioOut, "format", string(result.Format),
		"duration", result.Duration, "provider", result.Provider)

	wire := result.Wire()
	wire.Audio = nil // audio already on disk; keep the JSON readable
	payload, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if trackOut != "" {
		if err := os.WriteFile(trackOut, payload, 0o644); err != nil {
			return fmt.Errorf("write track: %w", err)
		}
	} else {
		fmt.Println(string(payload))
	}
	return nil
}

// registerProviders wires the backends. The mock provider is always present
// as the terminal fallback so the tool works without any external service.
func registerProviders(ctx context.Context, registry *speech.Registry, logger *log.Logger) error {
	if !useMock {
		edge := providers.NewEdge(providers.EdgeConfig{
			BaseURL:           viper.GetString("providers.edge.base_url"),
			RequestsPerMinute: viper.GetInt("providers.edge.requests_per_minute"),
		}, logger)
		if err := registry.Register(edge); err != nil {
			return err
		}

		if viper.GetBool("providers.google.enabled") {
			google, err := providers.NewGoogle(ctx, providers.GoogleConfig{
				RequestsPerMinute: viper.GetInt("providers.google.requests_per_minute"),
			}, logger)
			if err != nil {
				logger.Warn("google provider unavailable", "err", err)
			} else if err := registry.Register(google); err != nil {
				return err
			}
		}
	}

	return registry.Register(mock.New("mock"))
}

func main() {
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
