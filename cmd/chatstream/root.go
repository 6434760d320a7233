package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"chatstream/internal/config"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// buildRootCmd wires the CLI. Running the root command without a subcommand
// is the same as "serve".
func buildRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "chatstream",
		Short:         "Stream chat replies from a local model over server-sent events",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a .yaml, .json or .toml config file")
	addServeFlags(root.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	root.RunE = serveCmd.RunE

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chatstream", version)
		},
	}
	root.AddCommand(serveCmd, versionCmd)
	return root
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.String("addr", config.DefaultAddr, "HTTP listen address")
	fs.String("model", config.DefaultModelPath, "Model file (.gguf) or directory containing one")
	fs.Int("ctx-size", 0, "Model context size in tokens (0 = default)")
	fs.Int("threads", 0, "Inference threads (0 = runtime default)")
	fs.Int("gpu-layers", 0, "Layers to offload to the GPU")
	fs.Uint32("max-new-tokens", 0, "Maximum tokens generated per reply (0 = default)")
	fs.Bool("do-sample", true, "Sample with temperature/top-p; false selects greedy decoding")
	fs.Float32("temperature", 0, "Sampling temperature (0 = default)")
	fs.Float32("top-p", 0, "Nucleus sampling threshold (0 = default)")
	fs.Int("seed", 0, "Sampling seed (0 = random)")
	fs.Int("session-timeout", 0, "Per-session timeout in seconds (0 = none)")
	fs.Float64("rate-limit-rps", 0, "Per-client /chat_stream rate limit (0 = off)")
	fs.Int("rate-limit-burst", 0, "Per-client burst size")
	fs.String("cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")
	fs.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	fs.String("log-format", "console", "Log format: console|json")
	fs.String("trace-exporter", "", "Trace exporter: noop|stdout")
}

// resolveConfig loads the optional file, applies explicitly set flags on top
// and fills defaults.
func resolveConfig(path string, fs *pflag.FlagSet) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if err := applyFlags(fs, &cfg); err != nil {
		return cfg, err
	}
	return cfg.WithDefaults(), nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr, err = fs.GetString("addr") })
	set("model", func() { cfg.ModelPath, err = fs.GetString("model") })
	set("ctx-size", func() { cfg.CtxSize, err = fs.GetInt("ctx-size") })
	set("threads", func() { cfg.Threads, err = fs.GetInt("threads") })
	set("gpu-layers", func() { cfg.GPULayers, err = fs.GetInt("gpu-layers") })
	set("max-new-tokens", func() { cfg.MaxNewTokens, err = fs.GetUint32("max-new-tokens") })
	set("do-sample", func() {
		var v bool
		v, err = fs.GetBool("do-sample")
		cfg.DoSample = &v
	})
	set("temperature", func() { cfg.Temperature, err = fs.GetFloat32("temperature") })
	set("top-p", func() { cfg.TopP, err = fs.GetFloat32("top-p") })
	set("seed", func() { cfg.Seed, err = fs.GetInt("seed") })
	set("session-timeout", func() { cfg.SessionTimeoutSeconds, err = fs.GetInt("session-timeout") })
	set("rate-limit-rps", func() { cfg.RateLimitRPS, err = fs.GetFloat64("rate-limit-rps") })
	set("rate-limit-burst", func() { cfg.RateLimitBurst, err = fs.GetInt("rate-limit-burst") })
	set("cors-origins", func() {
		var v string
		v, err = fs.GetString("cors-origins")
		cfg.CORSOrigins = splitCSV(v)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	})
	set("log-level", func() { cfg.LogLevel, err = fs.GetString("log-level") })
	set("log-format", func() { cfg.LogFormat, err = fs.GetString("log-format") })
	set("trace-exporter", func() { cfg.TraceExporter, err = fs.GetString("trace-exporter") })
	return err
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
