package playstore

import (
	"net/url"
	"strings"

	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
)

// DefaultBaseURL 是商店列表页的固定前缀（不含查询参数）。
const DefaultBaseURL = "https://play.google.com/store/apps/details"

// BuildURL 构造列表页 URL：<base>?id=<packageName>[&hl=<locale>]。
//
// 约束：
// - 不做任何 I/O
// - packageName 原样出现在 URL 中（合法包名只含标识符字符与 '.'，无需转义）
// - base 为空时使用 DefaultBaseURL；base 必须是不带查询参数的 http/https 绝对地址
func BuildURL(base, packageName, locale string) (string, error) {
	name := strings.TrimSpace(packageName)
	if name == "" {
		return "", fault.New(fault.InvalidArgument, "url", "包名为空")
	}
	if _, ok := domain.ParsePackageName(name); !ok {
		return "", fault.Newf(fault.InvalidArgument, "url", "非法包名 %q", packageName)
	}

	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseURL
	}
	if err := checkBase(base); err != nil {
		return "", err
	}

	u := base + "?id=" + name
	if locale = strings.TrimSpace(locale); locale != "" {
		u += "&hl=" + url.QueryEscape(locale)
	}
	return u, nil
}

func checkBase(base string) error {
	u, err := url.Parse(base)
	if err != nil {
		return fault.Wrap(fault.InvalidArgument, "url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fault.Newf(fault.InvalidArgument, "url", "base 必须是 http/https：%q", base)
	}
	if u.Host == "" {
		return fault.Newf(fault.InvalidArgument, "url", "base 缺少 host：%q", base)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fault.Newf(fault.InvalidArgument, "url", "base 不能带查询参数：%q", base)
	}
	return nil
}
