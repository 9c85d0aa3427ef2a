package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示显式指定的 --config 文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/环境变量无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultBaseURL     = "https://play.google.com/store/apps/details"
	DefaultTimeout     = 5000 * time.Millisecond
	DefaultReferrer    = "http://www.google.com"
	DefaultConcurrency = 4
)

// 无 --config 时按顺序在 cwd 下查找（均为可选）。
var defaultFileNames = []string{"magneto.yaml", "magneto.yml", "magneto.json"}

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 只在显式给出时覆盖下层配置。
type CLIArgs struct {
	ConfigPath string

	BaseURL    string
	BaseURLSet bool

	Locale    string
	LocaleSet bool

	Timeout    time.Duration
	TimeoutSet bool

	ProxyURL    string
	ProxyURLSet bool

	Probe    string
	ProbeSet bool

	Concurrency    int
	ConcurrencySet bool

	Offline bool
}

// FileConfig 对应 magneto.yaml / magneto.json 的解析结构（JSON 作为 YAML 子集解析）。
type FileConfig struct {
	BaseURL           string            `yaml:"base_url"`
	Locale            string            `yaml:"locale"`
	Timeout           Duration          `yaml:"timeout"`
	Referrer          string            `yaml:"referrer"`
	UserAgent         string            `yaml:"user_agent"`
	Proxy             *ProxyConfig      `yaml:"proxy"`
	ConnectivityProbe string            `yaml:"connectivity_probe"`
	Concurrency       int               `yaml:"concurrency"`
	Installed         map[string]string `yaml:"installed"`
	Package           string            `yaml:"package"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// Duration 接受 Go duration 字符串（"5s"）或整数毫秒（5000）。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseDuration(n.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Source 是实际读取的配置文件路径；未读取任何文件时为空。
	Source string

	BaseURL     string
	Locale      string
	Timeout     time.Duration
	Referrer    string
	UserAgent   string
	ProxyURL    string
	Probe       string
	Concurrency int
	Offline     bool

	Installed map[string]string
	// Package 是命令未给出包名时使用的默认包名（通常是自己的应用）。
	Package string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 使用进程环境变量加载配置。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return LoadEffectiveEnv(cwd, cli, os.LookupEnv)
}

// LoadEffectiveEnv 按固定优先级合并配置：
//
//	默认值 < 配置文件 < 环境变量（进程环境优先于 <cwd>/.env） < CLI 显式参数
//
// 配置文件发现规则：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次尝试 <cwd>/magneto.yaml、magneto.yml、magneto.json（可选）
func LoadEffectiveEnv(cwd string, cli CLIArgs, lookup func(string) (string, bool)) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range defaultFileNames {
			p := filepath.Join(cwdAbs, name)
			f, exists, err := readFileConfig(p)
			if err != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
			}
			if exists {
				cfgPath, fc = p, f
				break
			}
		}
	}

	dotenvPath := filepath.Join(cwdAbs, ".env")
	dotenv, err := readDotenv(dotenvPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: dotenvPath, Err: err}
	}
	env := func(k string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(k); ok {
				return v, true
			}
		}
		v, ok := dotenv[k]
		return v, ok
	}

	return merge(cfgPath, cli, fc, env)
}

func merge(cfgPath string, cli CLIArgs, fc FileConfig, env func(string) (string, bool)) (EffectiveConfig, error) {
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err} }

	eff := EffectiveConfig{
		Source:      cfgPath,
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		Referrer:    DefaultReferrer,
		Concurrency: DefaultConcurrency,
		Offline:     cli.Offline,
	}

	// 配置文件层。
	if s := strings.TrimSpace(fc.BaseURL); s != "" {
		eff.BaseURL = s
	}
	eff.Locale = strings.TrimSpace(fc.Locale)
	if fc.Timeout > 0 {
		eff.Timeout = time.Duration(fc.Timeout)
	}
	if s := strings.TrimSpace(fc.Referrer); s != "" {
		eff.Referrer = s
	}
	eff.UserAgent = strings.TrimSpace(fc.UserAgent)
	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	eff.Probe = strings.TrimSpace(fc.ConnectivityProbe)
	if fc.Concurrency != 0 {
		eff.Concurrency = fc.Concurrency
	}
	eff.Package = strings.TrimSpace(fc.Package)

	// 环境变量层。
	if v, ok := env("MAGNETO_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		eff.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_LOCALE"); ok {
		eff.Locale = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := parseDuration(v)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("MAGNETO_TIMEOUT 无效：%w", err))
		}
		eff.Timeout = d
	}
	if v, ok := env("MAGNETO_REFERRER"); ok && strings.TrimSpace(v) != "" {
		eff.Referrer = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_USER_AGENT"); ok {
		eff.UserAgent = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_PROXY"); ok {
		eff.ProxyURL = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_PROBE"); ok {
		eff.Probe = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_PACKAGE"); ok {
		eff.Package = strings.TrimSpace(v)
	}
	if v, ok := env("MAGNETO_CONCURRENCY"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("MAGNETO_CONCURRENCY 无效：%w", err))
		}
		eff.Concurrency = n
	}

	// CLI 层：只覆盖显式给出的参数。
	if cli.BaseURLSet {
		eff.BaseURL = strings.TrimSpace(cli.BaseURL)
	}
	if cli.LocaleSet {
		eff.Locale = strings.TrimSpace(cli.Locale)
	}
	if cli.TimeoutSet {
		eff.Timeout = cli.Timeout
	}
	if cli.ProxyURLSet {
		eff.ProxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if cli.ProbeSet {
		eff.Probe = strings.TrimSpace(cli.Probe)
	}
	if cli.ConcurrencySet {
		eff.Concurrency = cli.Concurrency
	}

	// 规范化与校验。
	if err := validateHTTPURL("base_url", eff.BaseURL); err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	if eff.ProxyURL != "" {
		if err := validateHTTPURL("proxy.url", eff.ProxyURL); err != nil {
			return EffectiveConfig{}, invalid(err)
		}
	}
	if eff.Timeout <= 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("timeout 必须大于 0，实际 %v", eff.Timeout))
	}
	// 范围 [1, 32]；超出截断。
	if eff.Concurrency < 1 {
		eff.Concurrency = 1
	}
	if eff.Concurrency > 32 {
		eff.Concurrency = 32
	}

	eff.Installed = make(map[string]string, len(fc.Installed))
	for k, v := range fc.Installed {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		eff.Installed[k] = strings.TrimSpace(v)
	}
	return eff, nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s 无效：%w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s 缺少 host：%q", name, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// readDotenv 读取可选的 .env；只返回键值，不修改进程环境。
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
