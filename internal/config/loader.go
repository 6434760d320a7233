package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"chatstream/internal/common/fsutil"
	"chatstream/internal/llm"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr         = ":5000"
	DefaultModelPath    = "./huggingface_model"
	DefaultContextSize  = 4096
	DefaultStreamBuffer = 64
	DefaultJoinGraceMS  = 1000
	DefaultMaxBodyBytes = 1 << 20
	DefaultLogLevel     = "info"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	CtxSize   int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads   int    `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	// ChatTemplate is a Go text/template; "none" disables it so every prompt
	// uses the manual ChatML format.
	ChatTemplate string `json:"chat_template" yaml:"chat_template" toml:"chat_template"`

	MaxNewTokens uint32   `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	DoSample     *bool    `json:"do_sample" yaml:"do_sample" toml:"do_sample"`
	Temperature  float32  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP         float32  `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK         int      `json:"top_k" yaml:"top_k" toml:"top_k"`
	Seed         int      `json:"seed" yaml:"seed" toml:"seed"`
	EOSTokenID   *int32   `json:"eos_token_id" yaml:"eos_token_id" toml:"eos_token_id"`
	PadTokenID   *int32   `json:"pad_token_id" yaml:"pad_token_id" toml:"pad_token_id"`
	Stop         []string `json:"stop" yaml:"stop" toml:"stop"`

	StreamBuffer          int   `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`
	JoinGraceMS           int   `json:"join_grace_ms" yaml:"join_grace_ms" toml:"join_grace_ms"`
	SessionTimeoutSeconds int   `json:"session_timeout_seconds" yaml:"session_timeout_seconds" toml:"session_timeout_seconds"`
	MaxBodyBytes          int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	RateLimitRPS   float64 `json:"rate_limit_rps" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst" toml:"rate_limit_burst"`

	BreakerMaxFailures uint32 `json:"breaker_max_failures" yaml:"breaker_max_failures" toml:"breaker_max_failures"`
	BreakerOpenSeconds int    `json:"breaker_open_seconds" yaml:"breaker_open_seconds" toml:"breaker_open_seconds"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat     string `json:"log_format" yaml:"log_format" toml:"log_format"`
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter" toml:"trace_exporter"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelPath == "" {
		c.ModelPath = DefaultModelPath
	}
	if c.CtxSize <= 0 {
		c.CtxSize = DefaultContextSize
	}
	if c.ChatTemplate == "" {
		c.ChatTemplate = llm.DefaultChatTemplate
	}
	if c.MaxNewTokens == 0 {
		c.MaxNewTokens = llm.DefaultMaxNewTokens
	}
	if c.DoSample == nil {
		v := llm.DefaultDoSample
		c.DoSample = &v
	}
	if c.Temperature <= 0 {
		c.Temperature = llm.DefaultTemperature
	}
	if c.TopP <= 0 {
		c.TopP = llm.DefaultTopP
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.JoinGraceMS <= 0 {
		c.JoinGraceMS = DefaultJoinGraceMS
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	return c
}

// Params builds the generation parameters shared by every session.
func (c Config) Params() llm.Params {
	p := llm.DefaultParams()
	p.MaxNewTokens = c.MaxNewTokens
	if c.DoSample != nil {
		p.DoSample = *c.DoSample
	}
	p.Temperature = c.Temperature
	p.TopP = c.TopP
	p.TopK = c.TopK
	p.Seed = c.Seed
	if c.EOSTokenID != nil {
		p.EOSTokenID = *c.EOSTokenID
	}
	if c.PadTokenID != nil {
		p.PadTokenID = *c.PadTokenID
	}
	p.Stop = append([]string(nil), c.Stop...)
	return p.Normalize()
}

// ChatTemplateSource returns the template text, or "" when disabled.
func (c Config) ChatTemplateSource() string {
	if strings.EqualFold(strings.TrimSpace(c.ChatTemplate), "none") {
		return ""
	}
	return c.ChatTemplate
}

// JoinGrace returns the advisory worker join timeout.
func (c Config) JoinGrace() time.Duration { return time.Duration(c.JoinGraceMS) * time.Millisecond }

// SessionTimeout returns the per-session cap (0 = none).
func (c Config) SessionTimeout() time.Duration {
	if c.SessionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// BreakerOpen returns how long a tripped circuit stays open (0 = default).
func (c Config) BreakerOpen() time.Duration {
	return time.Duration(c.BreakerOpenSeconds) * time.Second
}
