package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Research    ResearchConfig    `yaml:"research"`
	Search      SearchConfig      `yaml:"search"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Timeout 为 0 表示不限制，流式响应通常远超 kratos 默认的 1s
	Timeout   time.Duration `yaml:"timeout"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// LLMConfig 主模型与回退模型
type LLMConfig struct {
	Primary  EndpointConfig `yaml:"primary"`
	Fallback EndpointConfig `yaml:"fallback"`
}

// EndpointConfig 单个 OpenAI 兼容模型端点
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ResearchConfig 编排策略
type ResearchConfig struct {
	PrimaryTimeout  time.Duration `yaml:"primary_timeout"`
	FallbackTimeout time.Duration `yaml:"fallback_timeout"`
	// FallbackOn: "any" 任何主调用错误都回退；"transient" 仅超时/模型不可用/限流
	FallbackOn     string        `yaml:"fallback_on"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	MaxToolSteps   int           `yaml:"max_tool_steps"`
	MaxPageChars   int           `yaml:"max_page_chars"`
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider   string        `yaml:"provider"`
	MaxResults int           `yaml:"max_results"`
	Tavily     TavilyConfig  `yaml:"tavily"`
	SearXNG    SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 模型调用限流
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置，Host 为空时不持久化报告
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LoadConfig 从指定路径加载配置并填充默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 填充未配置的字段
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.Heartbeat == 0 {
		c.Server.Heartbeat = 15 * time.Second
	}
	if c.Research.PrimaryTimeout == 0 {
		c.Research.PrimaryTimeout = 60 * time.Second
	}
	if c.Research.FallbackTimeout == 0 {
		c.Research.FallbackTimeout = 60 * time.Second
	}
	if c.Research.FallbackOn == "" {
		c.Research.FallbackOn = "any"
	}
	if c.Research.RetryBaseDelay == 0 {
		c.Research.RetryBaseDelay = 2 * time.Second
	}
	if c.Research.MaxToolSteps == 0 {
		c.Research.MaxToolSteps = 8
	}
	if c.Research.MaxPageChars == 0 {
		c.Research.MaxPageChars = 5000
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
}

// Validate 检查必填项
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.Primary.Model == "" {
		errs = append(errs, errors.New("llm.primary.model is required"))
	}
	if c.LLM.Fallback.Model == "" {
		errs = append(errs, errors.New("llm.fallback.model is required"))
	}
	switch c.Research.FallbackOn {
	case "any", "transient":
	default:
		errs = append(errs, fmt.Errorf("research.fallback_on must be any or transient, got %q", c.Research.FallbackOn))
	}
	if c.Research.PrimaryTimeout < 0 || c.Research.FallbackTimeout < 0 {
		errs = append(errs, errors.New("research timeouts must be positive"))
	}
	if c.Research.MaxRetries < 0 {
		errs = append(errs, errors.New("research.max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
