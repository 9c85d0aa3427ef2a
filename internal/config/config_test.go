package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_DefaultsWithoutAnyFile(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != "" {
		t.Fatalf("期望未读取配置文件，实际 source=%q", eff.Source)
	}
	if eff.BaseURL != DefaultBaseURL {
		t.Fatalf("期望默认 base_url，实际=%q", eff.BaseURL)
	}
	if eff.Timeout != DefaultTimeout {
		t.Fatalf("期望默认 timeout，实际=%v", eff.Timeout)
	}
	if eff.Referrer != DefaultReferrer {
		t.Fatalf("期望默认 referrer，实际=%q", eff.Referrer)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("期望默认 concurrency，实际=%d", eff.Concurrency)
	}
	if eff.Installed == nil || len(eff.Installed) != 0 {
		t.Fatalf("期望空的 installed，实际=%v", eff.Installed)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: "missing.yaml"}, noEnv)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_YAMLFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "magneto.yaml"), []byte(`
base_url: http://127.0.0.1:8080/store/apps/details
locale: de
timeout: 2s
user_agent: magneto-test
proxy:
  url: http://127.0.0.1:3128
connectivity_probe: 127.0.0.1:53
concurrency: 8
installed:
  com.example.app: "1.0"
package: com.example.self
`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != filepath.Join(cwd, "magneto.yaml") {
		t.Fatalf("source 不一致：%q", eff.Source)
	}
	if eff.BaseURL != "http://127.0.0.1:8080/store/apps/details" || eff.Locale != "de" {
		t.Fatalf("base_url/locale 不一致：%q %q", eff.BaseURL, eff.Locale)
	}
	if eff.Timeout != 2*time.Second {
		t.Fatalf("期望 timeout=2s，实际=%v", eff.Timeout)
	}
	if eff.UserAgent != "magneto-test" || eff.ProxyURL != "http://127.0.0.1:3128" || eff.Probe != "127.0.0.1:53" {
		t.Fatalf("字段不一致：%+v", eff)
	}
	if eff.Concurrency != 8 {
		t.Fatalf("期望 concurrency=8，实际=%d", eff.Concurrency)
	}
	if eff.Installed["com.example.app"] != "1.0" {
		t.Fatalf("installed 不一致：%v", eff.Installed)
	}
	if eff.Package != "com.example.self" {
		t.Fatalf("期望 package=com.example.self，实际=%q", eff.Package)
	}

	eff, err = LoadEffectiveEnv(cwd, CLIArgs{}, envOf(map[string]string{"MAGNETO_PACKAGE": "com.example.other"}))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Package != "com.example.other" {
		t.Fatalf("期望环境变量覆盖 package，实际=%q", eff.Package)
	}
}

func TestLoadEffective_JSONFileWithMillisTimeout(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "magneto.json"), []byte(`{"timeout": 1500, "locale": "fr"}`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Timeout != 1500*time.Millisecond {
		t.Fatalf("期望 timeout=1.5s，实际=%v", eff.Timeout)
	}
	if eff.Locale != "fr" {
		t.Fatalf("期望 locale=fr，实际=%q", eff.Locale)
	}
}

func TestLoadEffective_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "magneto.yaml"), []byte("locale: de\nconcurrency: 2\ntimeout: 1s\n"))
	writeFile(t, filepath.Join(cwd, ".env"), []byte("MAGNETO_LOCALE=fr\nMAGNETO_CONCURRENCY=3\n"))

	// .env 覆盖配置文件。
	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Locale != "fr" || eff.Concurrency != 3 {
		t.Fatalf("期望 .env 生效，实际 locale=%q concurrency=%d", eff.Locale, eff.Concurrency)
	}

	// 进程环境覆盖 .env。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{}, envOf(map[string]string{"MAGNETO_LOCALE": "es"}))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Locale != "es" || eff.Concurrency != 3 {
		t.Fatalf("期望进程环境生效，实际 locale=%q concurrency=%d", eff.Locale, eff.Concurrency)
	}

	// CLI 显式参数覆盖一切；未显式给出的不覆盖。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{
		Locale:    "it",
		LocaleSet: true,
		Timeout:   3 * time.Second, // TimeoutSet=false：不应生效
	}, envOf(map[string]string{"MAGNETO_LOCALE": "es"}))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Locale != "it" {
		t.Fatalf("期望 locale=it，实际=%q", eff.Locale)
	}
	if eff.Timeout != time.Second {
		t.Fatalf("期望 timeout=1s，实际=%v", eff.Timeout)
	}
}

func TestLoadEffective_ExplicitConfigPathRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	if err := os.Mkdir(filepath.Join(cwd, "conf"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(cwd, "conf", "x.yaml"), []byte("locale: ja\n"))
	// 显式 --config 时不再读取默认文件。
	writeFile(t, filepath.Join(cwd, "magneto.yaml"), []byte("locale: de\n"))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{ConfigPath: "conf/x.yaml"}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Locale != "ja" {
		t.Fatalf("期望 locale=ja，实际=%q", eff.Locale)
	}
}

func TestLoadEffective_ConcurrencyClamp(t *testing.T) {
	cwd := t.TempDir()

	for _, tc := range []struct {
		in, want int
	}{
		{in: -5, want: 1},
		{in: 0, want: 1},
		{in: 100, want: 32},
		{in: 16, want: 16},
	} {
		eff, err := LoadEffectiveEnv(cwd, CLIArgs{Concurrency: tc.in, ConcurrencySet: true}, noEnv)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if eff.Concurrency != tc.want {
			t.Fatalf("concurrency=%d：期望 %d，实际 %d", tc.in, tc.want, eff.Concurrency)
		}
	}
}

func TestLoadEffective_InvalidInputs(t *testing.T) {
	cases := map[string]struct {
		file string
		env  map[string]string
		cli  CLIArgs
	}{
		"yaml 语法错误":    {file: "locale: [unterminated\n"},
		"proxy 非法":     {file: "proxy:\n  url: http://[::1\n"},
		"proxy 缺 host":  {file: "proxy:\n  url: socks5://\n"},
		"base_url 非法":  {cli: CLIArgs{BaseURL: "ftp://x/y", BaseURLSet: true}},
		"timeout 非法":   {env: map[string]string{"MAGNETO_TIMEOUT": "soon"}},
		"timeout 非正":   {cli: CLIArgs{Timeout: -time.Second, TimeoutSet: true}},
		"并发数非数字":       {env: map[string]string{"MAGNETO_CONCURRENCY": "many"}},
		"文件 timeout 非法": {file: "timeout: forever\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			if tc.file != "" {
				writeFile(t, filepath.Join(cwd, "magneto.yaml"), []byte(tc.file))
			}
			_, err := LoadEffectiveEnv(cwd, tc.cli, envOf(tc.env))
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
