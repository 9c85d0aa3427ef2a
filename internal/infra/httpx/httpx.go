package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout  = 5000 * time.Millisecond
	DefaultReferrer = "http://www.google.com"
)

// Transport 把“固定 Referer + UA 池 + 代理”固化为统一策略。
//
// 约束：不做重试、不做缓存；每次 RoundTrip 对应恰好一次底层请求。
type Transport struct {
	Base http.RoundTripper

	Referrer  string
	UserAgent string // 非空时固定使用；为空时从 UA 池随机取

	ua *uaPool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("Referer") == "" && t.Referrer != "" {
		r.Header.Set("Referer", t.Referrer)
	}
	if r.Header.Get("User-Agent") == "" {
		if t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		} else if t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	}
	return t.Base.RoundTrip(r)
}

// Options 是构造抓取 client 的全部输入；零值字段使用默认值。
type Options struct {
	Timeout   time.Duration
	Referrer  string
	UserAgent string
	ProxyURL  string
}

// NewClient 构造用于列表页抓取的 HTTP client。
//
// 规则：
// - 总超时默认 5s（超时由 http.Client 统一执行）
// - Referer 默认 http://www.google.com
// - proxyURL 非空：走代理
// - 重定向沿用 net/http 默认策略
func NewClient(o Options) (*http.Client, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	referrer := strings.TrimSpace(o.Referrer)
	if referrer == "" {
		referrer = DefaultReferrer
	}

	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	if p := strings.TrimSpace(o.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 缺少 scheme 或 host：" + p)
		}
		base.Proxy = http.ProxyURL(u)
	}

	tr := &Transport{
		Base:      base,
		Referrer:  referrer,
		UserAgent: strings.TrimSpace(o.UserAgent),
		ua:        globalUA,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	// 商店会拦截没有浏览器 UA 的请求；列表保持短小但多样。
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
