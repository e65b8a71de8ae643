package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config 应用静态配置,由 appconfig.json、配置文件与环境变量合并而来
type Config struct {
	Logger    LoggerConfig    `json:"logger" mapstructure:"logger"`
	Browser   BrowserConfig   `json:"browser" mapstructure:"browser"`
	Collector CollectorConfig `json:"collector" mapstructure:"collector"`
	Store     StoreConfig     `json:"store" mapstructure:"store"`
	Leads     LeadsConfig     `json:"leads" mapstructure:"leads"`
	Embedder  EmbedderConfig  `json:"embedder" mapstructure:"embedder"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Sheets    SheetsConfig    `json:"sheets" mapstructure:"sheets"`
	Executor  ExecutorConfig  `json:"executor" mapstructure:"executor"`
	Scanner   ScannerConfig   `json:"scanner" mapstructure:"scanner"`
	Export    ExportConfig    `json:"export" mapstructure:"export"`
	Parallel  ParallelConfig  `json:"parallel" mapstructure:"parallel"`
	Agent     AgentConfig     `json:"agent" mapstructure:"agent"`
}

type LoggerConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Format      string `json:"format" mapstructure:"format"`
	AddSource   bool   `json:"add_source" mapstructure:"add_source"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
	LogFile     string `json:"log_file" mapstructure:"log_file"`
	MaxSize     int    `json:"max_size" mapstructure:"max_size"`
	MaxBackups  int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAge      int    `json:"max_age" mapstructure:"max_age"`
	Compress    bool   `json:"compress" mapstructure:"compress"`
}

// BrowserConfig 浏览器驱动配置,Driver 可选 rod 或 chromedp
type BrowserConfig struct {
	Driver               string        `json:"driver" mapstructure:"driver"`
	Bin                  string        `json:"bin" mapstructure:"bin"`
	UserDataDir          string        `json:"user_data_dir" mapstructure:"user_data_dir"`
	DownloadDir          string        `json:"download_dir" mapstructure:"download_dir"`
	Headless             bool          `json:"headless" mapstructure:"headless"`
	DisableBlinkFeatures string        `json:"disable_blink_features" mapstructure:"disable_blink_features"`
	Incognito            bool          `json:"incognito" mapstructure:"incognito"`
	DisableDevShmUsage   bool          `json:"disable_dev_shm_usage" mapstructure:"disable_dev_shm_usage"`
	NoSandbox            bool          `json:"no_sandbox" mapstructure:"no_sandbox"`
	UserAgent            string        `json:"user_agent" mapstructure:"user_agent"`
	Leakless             bool          `json:"leakless" mapstructure:"leakless"`
	Stealth              bool          `json:"stealth" mapstructure:"stealth"`
	Trace                bool          `json:"trace" mapstructure:"trace"`
	RemoteDebuggingPort  int           `json:"remote_debugging_port" mapstructure:"remote_debugging_port"`
	LifeTime             time.Duration `json:"life_time" mapstructure:"life_time"`
	LoadTimeout          time.Duration `json:"load_timeout" mapstructure:"load_timeout"`
}

type CollectorConfig struct {
	AllowedDomains  []string      `json:"allowed_domains" mapstructure:"allowed_domains"`
	UserAgent       string        `json:"user_agent" mapstructure:"user_agent"`
	IgnoreRobotsTxt bool          `json:"ignore_robots_txt" mapstructure:"ignore_robots_txt"`
	Parallelism     int           `json:"parallelism" mapstructure:"parallelism"`
	Delay           time.Duration `json:"delay" mapstructure:"delay"`
	RandomDelay     time.Duration `json:"random_delay" mapstructure:"random_delay"`
	EnableCookieJar bool          `json:"enable_cookie_jar" mapstructure:"enable_cookie_jar"`
	Cookie          string        `json:"cookie" mapstructure:"cookie"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
}

// StoreConfig 键值配置存储,Kind 可选 memory 或 redis
type StoreConfig struct {
	Kind          string `json:"kind" mapstructure:"kind"`
	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" mapstructure:"redis_db"`
	Prefix        string `json:"prefix" mapstructure:"prefix"`
	Channel       string `json:"channel" mapstructure:"channel"`
}

// LeadsConfig 线索存储,Kind 为 kv 时线索保存在配置存储的 leads 键下,为 elasticsearch 时写入 es
type LeadsConfig struct {
	Kind     string `json:"kind" mapstructure:"kind"`
	Address  string `json:"address" mapstructure:"address"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Index    string `json:"index" mapstructure:"index"`
	Dims     int    `json:"dims" mapstructure:"dims"`
	Embed    bool   `json:"embed" mapstructure:"embed"`
}

type EmbedderConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      int    `json:"port" mapstructure:"port"`
	Model     string `json:"model" mapstructure:"model"`
	BatchSize int    `json:"batch_size" mapstructure:"batch_size"`
}

// LLMConfig 语言模型配置,Provider 可选 openrouter、openai、anthropic、ollama
type LLMConfig struct {
	Provider    string        `json:"provider" mapstructure:"provider"`
	Model       string        `json:"model" mapstructure:"model"`
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	Host        string        `json:"host" mapstructure:"host"`
	Port        int           `json:"port" mapstructure:"port"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `json:"temperature" mapstructure:"temperature"`
	RPS         float64       `json:"rps" mapstructure:"rps"`
	Burst       int           `json:"burst" mapstructure:"burst"`
}

type SheetsConfig struct {
	SpreadsheetID string        `json:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName     string        `json:"sheet_name" mapstructure:"sheet_name"`
	AccessToken   string        `json:"access_token" mapstructure:"access_token"`
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
}

type ExecutorConfig struct {
	StepDelay    time.Duration `json:"step_delay" mapstructure:"step_delay"`
	WaitTimeout  time.Duration `json:"wait_timeout" mapstructure:"wait_timeout"`
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	MaxItems     int           `json:"max_items" mapstructure:"max_items"`
}

type ScannerConfig struct {
	ObserveInterval  time.Duration `json:"observe_interval" mapstructure:"observe_interval"`
	NavigationSettle time.Duration `json:"navigation_settle" mapstructure:"navigation_settle"`
	SearchInputWait  time.Duration `json:"search_input_wait" mapstructure:"search_input_wait"`
}

type ExportConfig struct {
	Debounce      time.Duration `json:"debounce" mapstructure:"debounce"`
	BatchSize     int           `json:"batch_size" mapstructure:"batch_size"`
	RetryAttempts int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	SyncInterval  time.Duration `json:"sync_interval" mapstructure:"sync_interval"`
}

type ParallelConfig struct {
	PoolSize    int           `json:"pool_size" mapstructure:"pool_size"`
	LoadTimeout time.Duration `json:"load_timeout" mapstructure:"load_timeout"`
	Retries     int           `json:"retries" mapstructure:"retries"`
	RetryDelay  time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
}

type AgentConfig struct {
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`
	TopK      int    `json:"top_k" mapstructure:"top_k"`
}

// Validate 检查配置的取值范围
func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Driver {
	case "rod", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be rod or chromedp, got %q", c.Browser.Driver))
	}
	switch c.Store.Kind {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required when store.kind is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be memory or redis, got %q", c.Store.Kind))
	}
	switch c.Leads.Kind {
	case "kv":
	case "elasticsearch":
		if c.Leads.Address == "" {
			errs = append(errs, errors.New("leads.address is required when leads.kind is elasticsearch"))
		}
		if c.Leads.Embed && c.Leads.Dims <= 0 {
			errs = append(errs, errors.New("leads.dims must be positive when leads.embed is enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("leads.kind must be kv or elasticsearch, got %q", c.Leads.Kind))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openrouter", "openai", "anthropic", "ollama":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.RPS < 0 {
		errs = append(errs, errors.New("llm.rps must not be negative"))
	}
	if c.Export.BatchSize <= 0 {
		errs = append(errs, errors.New("export.batch_size must be positive"))
	}
	if c.Export.RetryAttempts < 1 {
		errs = append(errs, errors.New("export.retry_attempts must be at least 1"))
	}
	if c.Parallel.PoolSize <= 0 {
		errs = append(errs, errors.New("parallel.pool_size must be positive"))
	}
	if c.Executor.StepDelay < 0 || c.Executor.WaitTimeout <= 0 || c.Executor.PollInterval <= 0 {
		errs = append(errs, errors.New("executor delays must be positive"))
	}
	return errors.Join(errs...)
}
