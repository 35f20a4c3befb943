package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL       = "http://localhost:8000"
	defaultTimeout       = 30 * time.Second
	defaultAssistantName = "Funda Fargo"
	defaultLogLevel      = "info"
)

// Config 聚合客户端的全部配置项。
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	UI      UIConfig      `yaml:"ui"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig 描述助手后端的连接配置。
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Stream  bool          `yaml:"stream"`
}

// UIConfig 描述终端界面的展示配置。
type UIConfig struct {
	AssistantName string `yaml:"assistant_name"`
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{BaseURL: defaultBaseURL, Timeout: defaultTimeout, Stream: true},
		UI:      UIConfig{AssistantName: defaultAssistantName},
		Log:     LogConfig{Level: defaultLogLevel},
	}
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend: backend,
		UI:      UIConfig{AssistantName: getEnvOrDefault("CHAT_ASSISTANT_NAME", defaultAssistantName)},
		Log:     LogConfig{Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", defaultLogLevel))},
	}
	return cfg, nil
}

// LoadFile 在环境变量配置之上叠加 YAML 文件中的配置。
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.merge(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Backend.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the non-zero fields of a YAML document. A file that omits
// backend.stream keeps the environment value.
func (c *Config) merge(data []byte) error {
	var file struct {
		Backend struct {
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
			Stream  *bool         `yaml:"stream"`
		} `yaml:"backend"`
		UI  UIConfig  `yaml:"ui"`
		Log LogConfig `yaml:"log"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if v := strings.TrimSpace(file.Backend.BaseURL); v != "" {
		c.Backend.BaseURL = strings.TrimRight(v, "/")
	}
	if file.Backend.Timeout > 0 {
		c.Backend.Timeout = file.Backend.Timeout
	}
	if file.Backend.Stream != nil {
		c.Backend.Stream = *file.Backend.Stream
	}
	if v := strings.TrimSpace(file.UI.AssistantName); v != "" {
		c.UI.AssistantName = v
	}
	if v := strings.TrimSpace(file.Log.Level); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseDurationEnv("CHAT_TIMEOUT", defaultTimeout)
	if err != nil {
		return BackendConfig{}, err
	}

	stream, err := parseBoolEnv("CHAT_STREAM", true)
	if err != nil {
		return BackendConfig{}, err
	}

	cfg := BackendConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("CHAT_BASE_URL", defaultBaseURL), "/"),
		Timeout: timeout,
		Stream:  stream,
	}
	if err := cfg.Validate(); err != nil {
		return BackendConfig{}, err
	}
	return cfg, nil
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c BackendConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid CHAT_BASE_URL value %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid CHAT_BASE_URL value %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid CHAT_BASE_URL value %q: missing host", c.BaseURL)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 允许直接传入秒数，例如 "45"。
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
