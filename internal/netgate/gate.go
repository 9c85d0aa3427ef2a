package netgate

import (
	"context"
	"net"
	"strings"
	"time"
)

// Gate 是发起网络请求前必须满足的前置条件。
//
// 约束：Gate 只回答“现在能不能联网”，不持有任何可变状态；
// 返回 false 时，上层必须直接失败（NetworkUnavailable），不得发起请求。
type Gate interface {
	Online(ctx context.Context) bool
}

// Func 把普通函数适配为 Gate。
type Func func(ctx context.Context) bool

func (f Func) Online(ctx context.Context) bool { return f(ctx) }

type constGate bool

func (g constGate) Online(context.Context) bool { return bool(g) }

var (
	// Always 总是认为在线（默认值）。
	Always Gate = constGate(true)
	// Never 总是认为离线（CLI --offline）。
	Never Gate = constGate(false)
)

const defaultProbeTimeout = 2 * time.Second

// Probe 通过一次 TCP 拨号判断网络可达性（服务器环境下对“设备联网状态”的等价物）。
type Probe struct {
	Addr    string // host:port
	Timeout time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewProbe 构造探测门；addr 为空时退化为 Always。
func NewProbe(addr string, timeout time.Duration) Gate {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Always
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	d := &net.Dialer{Timeout: timeout}
	return Probe{Addr: addr, Timeout: timeout, dial: d.DialContext}
}

func (p Probe) Online(ctx context.Context) bool {
	dial := p.dial
	if dial == nil {
		d := &net.Dialer{Timeout: defaultProbeTimeout}
		dial = d.DialContext
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	conn, err := dial(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
