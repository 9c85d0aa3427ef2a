package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind 是对外暴露的失败类别（封闭集合）。
// 每个 Kind 对应一个稳定的数字 code，用于跨边界上报（JSON report / 退出信息）。
type Kind int

const (
	Generic Kind = iota
	InvalidArgument
	NetworkUnavailable
	TransportError
	ParseError
	FieldNotFound
	VersionVariesByDevice
	PackageNotInstalled
	UpgradeCheckFailed
	InvariantViolation
)

// Entry 是静态目录中的一条记录：(code, message, kind)。
type Entry struct {
	Kind    Kind
	Code    int
	Name    string
	Message string
}

// catalog 只在包初始化时构建，运行期只读。
var catalog = [...]Entry{
	Generic:               {Generic, 100, "generic", "未知错误"},
	InvalidArgument:       {InvalidArgument, 101, "invalid_argument", "参数无效"},
	NetworkUnavailable:    {NetworkUnavailable, 102, "network_unavailable", "网络不可用"},
	TransportError:        {TransportError, 103, "transport_error", "请求失败"},
	ParseError:            {ParseError, 104, "parse_error", "页面解析失败"},
	FieldNotFound:         {FieldNotFound, 105, "field_not_found", "页面中未找到字段"},
	VersionVariesByDevice: {VersionVariesByDevice, 106, "version_varies_by_device", "版本号随设备而异"},
	PackageNotInstalled:   {PackageNotInstalled, 107, "package_not_installed", "本地未安装该应用"},
	UpgradeCheckFailed:    {UpgradeCheckFailed, 108, "upgrade_check_failed", "升级检查失败"},
	InvariantViolation:    {InvariantViolation, 109, "invariant_violation", "结果实体不变量被破坏"},
}

// Catalog 返回完整目录的副本（按 code 升序）。
func Catalog() []Entry {
	out := make([]Entry, len(catalog))
	copy(out, catalog[:])
	return out
}

func (k Kind) entry() Entry {
	if k < 0 || int(k) >= len(catalog) {
		return catalog[Generic]
	}
	return catalog[k]
}

func (k Kind) Code() int       { return k.entry().Code }
func (k Kind) String() string  { return k.entry().Name }
func (k Kind) Message() string { return k.entry().Message }

// Error 是引擎各组件统一返回的错误类型。
//
// 约束：
// - Kind 必须来自静态目录；Message 只由目录决定，Detail 用于补充上下文
// - Err 保留下游原因（可能是另一个 *Error），Unwrap 后可继续判断
type Error struct {
	Kind   Kind
	Op     string // 例如 "fetch" / "extract" / "upgrade"
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return catalog[Generic].Message
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Message())
	if e.Detail != "" {
		b.WriteString("（")
		b.WriteString(e.Detail)
		b.WriteString("）")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New 构造一个不带下游原因的错误。
func New(k Kind, op, detail string) *Error {
	return &Error{Kind: k, Op: op, Detail: detail}
}

// Newf 与 New 相同，detail 支持格式化。
func Newf(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap 把 err 归类为 k；err 为 nil 时返回 nil。
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf 返回错误链上最外层的 Kind；非本包错误一律视为 Generic。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}

// CodeOf 返回 KindOf(err) 的数字 code；err 为 nil 时返回 0。
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).Code()
}

// Is 判断错误链上是否存在 Kind==k 的 *Error（不只看最外层）。
func Is(err error, k Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}

// IsTimeout 判断 TransportError 是否属于超时分支。
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
