package chrome

import (
	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

type launchOptions struct {
	bin                  string
	userDataDir          string
	headless             bool
	disableBlinkFeatures string
	incognito            bool
	disableDevShmUsage   bool
	noSandbox            bool
	userAgent            string
	leakless             bool
	remoteDebuggingPort  int
}

type LaunchOption func(*launchOptions)

func WithBin(bin string) LaunchOption {
	return func(o *launchOptions) { o.bin = bin }
}

func WithUserDataDir(dir string) LaunchOption {
	return func(o *launchOptions) { o.userDataDir = dir }
}

func WithHeadless(headless bool) LaunchOption {
	return func(o *launchOptions) { o.headless = headless }
}

func WithDisableBlinkFeatures(features string) LaunchOption {
	return func(o *launchOptions) { o.disableBlinkFeatures = features }
}

func WithIncognito(incognito bool) LaunchOption {
	return func(o *launchOptions) { o.incognito = incognito }
}

func WithDisableDevShmUsage(disable bool) LaunchOption {
	return func(o *launchOptions) { o.disableDevShmUsage = disable }
}

func WithNoSandbox(noSandbox bool) LaunchOption {
	return func(o *launchOptions) { o.noSandbox = noSandbox }
}

func WithUserAgent(ua string) LaunchOption {
	return func(o *launchOptions) { o.userAgent = ua }
}

func WithLeakless(leakless bool) LaunchOption {
	return func(o *launchOptions) { o.leakless = leakless }
}

func WithRemoteDebuggingPort(port int) LaunchOption {
	return func(o *launchOptions) { o.remoteDebuggingPort = port }
}

// LaunchOptionsFromConfig 浏览器配置转换为启动选项
func LaunchOptionsFromConfig(cfg config.BrowserConfig) []LaunchOption {
	return []LaunchOption{
		WithBin(cfg.Bin),
		WithUserDataDir(cfg.UserDataDir),
		WithHeadless(cfg.Headless),
		WithDisableBlinkFeatures(cfg.DisableBlinkFeatures),
		WithIncognito(cfg.Incognito),
		WithDisableDevShmUsage(cfg.DisableDevShmUsage),
		WithNoSandbox(cfg.NoSandbox),
		WithUserAgent(cfg.UserAgent),
		WithLeakless(cfg.Leakless),
		WithRemoteDebuggingPort(cfg.RemoteDebuggingPort),
	}
}

// CreateLauncher 创建 rod 启动器,userMode 为 true 时复用本机已登录的浏览器
func CreateLauncher(userMode bool, opts ...LaunchOption) *launcher.Launcher {
	o := &launchOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var l *launcher.Launcher
	if userMode {
		l = launcher.NewUserMode()
	} else {
		l = launcher.New().Headless(o.headless).Leakless(o.leakless)
	}
	if o.bin != "" {
		l = l.Bin(o.bin)
	}
	if o.userDataDir != "" {
		l = l.UserDataDir(o.userDataDir)
	}
	if o.disableBlinkFeatures != "" {
		l = l.Set(flags.Flag("disable-blink-features"), o.disableBlinkFeatures)
	}
	if o.incognito {
		l = l.Set(flags.Flag("incognito"))
	}
	if o.disableDevShmUsage {
		l = l.Set(flags.Flag("disable-dev-shm-usage"))
	}
	if o.noSandbox {
		l = l.NoSandbox(true)
	}
	if o.userAgent != "" {
		l = l.Set(flags.Flag("user-agent"), o.userAgent)
	}
	if o.remoteDebuggingPort > 0 {
		l = l.RemoteDebuggingPort(o.remoteDebuggingPort)
	}
	return l
}

// allocatorOptions chromedp 的启动参数
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("incognito", cfg.Incognito),
		chromedp.Flag("disable-dev-shm-usage", cfg.DisableDevShmUsage),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
	)
	if cfg.DisableBlinkFeatures != "" {
		opts = append(opts, chromedp.Flag("disable-blink-features", cfg.DisableBlinkFeatures))
	}
	if cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Bin))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}
