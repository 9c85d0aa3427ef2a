package upgrade

import (
	"errors"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/John-Robertt/magneto/internal/fault"
)

// VariesWithDevice 是商店在“不同设备版本不同”时展示的占位文本，不是可比较的版本号。
const VariesWithDevice = "Varies with device"

// Check 判断 remote 相对 local 是否代表可升级。
//
// 规则：remote 为占位文本时报 VersionVariesByDevice；否则按字符串精确比较（remote != local）。
// 商店的版本串是不透明的，这里不做语义版本解析。
func Check(local, remote string) (bool, error) {
	if remote == VariesWithDevice {
		return false, fault.New(fault.VersionVariesByDevice, "upgrade", "")
	}
	return remote != local, nil
}

// Direction 是 Compare 的结果，仅用于展示，不影响 Check 的判定。
type Direction int

const (
	Unknown Direction = iota
	Same
	Newer // remote 比 local 新
	Older // remote 比 local 旧
)

func (d Direction) String() string {
	switch d {
	case Same:
		return "same"
	case Newer:
		return "newer"
	case Older:
		return "older"
	default:
		return "unknown"
	}
}

// Compare 在两个版本串都能按 PEP 440 解析时给出先后关系；任一无法解析则返回 Unknown。
func Compare(local, remote string) Direction {
	if local == remote {
		return Same
	}
	lv, err := pep440.Parse(strings.TrimSpace(local))
	if err != nil {
		return Unknown
	}
	rv, err := pep440.Parse(strings.TrimSpace(remote))
	if err != nil {
		return Unknown
	}
	switch {
	case rv.GreaterThan(lv):
		return Newer
	case lv.GreaterThan(rv):
		return Older
	default:
		return Same
	}
}

// Lookup 提供“本地已安装版本”。找不到时必须返回错误。
type Lookup interface {
	InstalledVersion(pkg string) (string, error)
}

// ErrNotInstalled 表示 Lookup 中没有该包。
var ErrNotInstalled = errors.New("not installed")

// MapLookup 是基于配置文件 installed 表的 Lookup 实现。
type MapLookup map[string]string

func (m MapLookup) InstalledVersion(pkg string) (string, error) {
	v, ok := m[pkg]
	if !ok {
		return "", ErrNotInstalled
	}
	return v, nil
}

// Resolve 调用 lookup 并把失败统一归类为 PackageNotInstalled。
func Resolve(lookup Lookup, pkg string) (string, error) {
	if lookup == nil {
		return "", fault.New(fault.PackageNotInstalled, "upgrade", pkg)
	}
	v, err := lookup.InstalledVersion(pkg)
	if err != nil {
		return "", &fault.Error{Kind: fault.PackageNotInstalled, Op: "upgrade", Detail: pkg, Err: err}
	}
	return v, nil
}
