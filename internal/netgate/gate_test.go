package netgate

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestConstGates(t *testing.T) {
	if !Always.Online(context.Background()) {
		t.Fatalf("Always 应在线")
	}
	if Never.Online(context.Background()) {
		t.Fatalf("Never 应离线")
	}
}

func TestFunc(t *testing.T) {
	calls := 0
	g := Func(func(context.Context) bool { calls++; return false })
	if g.Online(context.Background()) {
		t.Fatalf("期望离线")
	}
	if calls != 1 {
		t.Fatalf("期望调用 1 次，实际 %d", calls)
	}
}

func TestNewProbe_EmptyAddrIsAlways(t *testing.T) {
	if g := NewProbe("  ", 0); g != Always {
		t.Fatalf("空地址应退化为 Always，实际 %T", g)
	}
}

func TestProbe_ReachableListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听失败：%v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	g := NewProbe(ln.Addr().String(), time.Second)
	if !g.Online(context.Background()) {
		t.Fatalf("可达地址应判定为在线")
	}
}

func TestProbe_UnreachableAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听失败：%v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	g := NewProbe(addr, 500*time.Millisecond)
	if g.Online(context.Background()) {
		t.Fatalf("已关闭端口应判定为离线")
	}
}
