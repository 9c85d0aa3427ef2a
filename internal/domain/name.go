package domain

import (
	"regexp"
	"strings"
)

// PackageName 是商店中应用的唯一标识（例如 com.example.app）。
//
// 约束：只允许标识符字符与 '.'，因此拼进 URL 时无需转义。
type PackageName string

var packageNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// ParsePackageName 校验包名；前后空白会被去掉，其余字符原样保留。
func ParsePackageName(s string) (PackageName, bool) {
	s = strings.TrimSpace(s)
	if !packageNameRE.MatchString(s) {
		return "", false
	}
	return PackageName(s), true
}
