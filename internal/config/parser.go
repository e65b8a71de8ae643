package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "LEADAGENT"

// SetDefaults 注册所有配置项的默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "leadagent")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.user_data_dir", "./user_data")
	v.SetDefault("browser.download_dir", "./downloads")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_blink_features", "AutomationControlled")
	v.SetDefault("browser.disable_dev_shm_usage", true)
	v.SetDefault("browser.leakless", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.remote_debugging_port", 9222)
	v.SetDefault("browser.life_time", "2h")
	v.SetDefault("browser.load_timeout", "30s")

	v.SetDefault("collector.allowed_domains", []string{"www.linkedin.com", "linkedin.com"})
	v.SetDefault("collector.parallelism", 1)
	v.SetDefault("collector.delay", "2s")
	v.SetDefault("collector.random_delay", "1s")
	v.SetDefault("collector.enable_cookie_jar", true)
	v.SetDefault("collector.timeout", "30s")

	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.prefix", "llf:")
	v.SetDefault("store.channel", "llf:changes")

	v.SetDefault("leads.kind", "kv")
	v.SetDefault("leads.address", "http://localhost:9200")
	v.SetDefault("leads.index", "linkedin_leads")
	v.SetDefault("leads.dims", 768)
	v.SetDefault("leads.embed", false)

	v.SetDefault("embedder.host", "http://localhost")
	v.SetDefault("embedder.port", 11434)
	v.SetDefault("embedder.model", "nomic-embed-text")
	v.SetDefault("embedder.batch_size", 16)

	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.model", "openai/gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.host", "http://localhost")
	v.SetDefault("llm.port", 11434)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.rps", 1.0)
	v.SetDefault("llm.burst", 2)

	v.SetDefault("sheets.sheet_name", "Sheet1")
	v.SetDefault("sheets.base_url", "https://sheets.googleapis.com/v4/spreadsheets")
	v.SetDefault("sheets.timeout", "30s")

	v.SetDefault("executor.step_delay", "1s")
	v.SetDefault("executor.wait_timeout", "5s")
	v.SetDefault("executor.poll_interval", "200ms")
	v.SetDefault("executor.max_items", 100)

	v.SetDefault("scanner.observe_interval", "2s")
	v.SetDefault("scanner.navigation_settle", "3s")
	v.SetDefault("scanner.search_input_wait", "4s")

	v.SetDefault("export.debounce", "5s")
	v.SetDefault("export.batch_size", 50)
	v.SetDefault("export.retry_attempts", 3)
	v.SetDefault("export.retry_delay", "2s")
	v.SetDefault("export.sync_interval", "30m")

	v.SetDefault("parallel.pool_size", 3)
	v.SetDefault("parallel.load_timeout", "30s")
	v.SetDefault("parallel.retries", 3)
	v.SetDefault("parallel.retry_delay", "2s")

	v.SetDefault("agent.chat_model", "")
	v.SetDefault("agent.top_k", 5)
}

// NewConfigFromViper 绑定环境变量,反序列化并校验配置
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API 密钥沿用常见的环境变量名
	_ = v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("sheets.access_token", envPrefix+"_SHEETS_ACCESS_TOKEN", "SHEETS_ACCESS_TOKEN")
	_ = v.BindEnv("sheets.spreadsheet_id", envPrefix+"_SHEETS_SPREADSHEET_ID", "SHEETS_SPREADSHEET_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if cfg.Browser.UserDataDir != "" {
		absPath, err := filepath.Abs(cfg.Browser.UserDataDir)
		if err != nil {
			return nil, err
		}
		cfg.Browser.UserDataDir = absPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ParseConfig 解析嵌入的 json 配置,未填写的项使用默认值
func ParseConfig(byteConfig []byte) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("json")
	if len(byteConfig) > 0 {
		if err := v.ReadConfig(bytes.NewReader(byteConfig)); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// LoadConfig 在嵌入配置之上合并外部配置文件
func LoadConfig(byteConfig []byte, path string) (*Config, error) {
	if path == "" {
		return ParseConfig(byteConfig)
	}
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("json")
	if len(byteConfig) > 0 {
		if err := v.ReadConfig(bytes.NewReader(byteConfig)); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("合并配置文件 %s 失败: %w", path, err)
	}
	return NewConfigFromViper(v)
}
