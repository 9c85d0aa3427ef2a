package playstore

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/magneto/internal/fault"
	"github.com/John-Robertt/magneto/internal/netgate"
)

// 列表页通常几百 KB；超过上限直接截断，避免异常响应拖垮内存。
const maxBodyBytes = 8 << 20

// Verify 只看状态码；少量排空以便连接复用。
const maxDrainBytes = 64 << 10

// Fetcher 负责“联网前置检查 + 单次 GET + 解析为文档树”。
//
// 约束：
// - 不重试、不缓存；重定向沿用 http.Client 默认策略
// - HTTP 非 2xx 不算失败：body 照常解析（商店 404 页也是 HTML）
// - 超时/取消由 ctx 与 Client.Timeout 共同决定，统一归类为 TransportError
type Fetcher struct {
	Client *http.Client
	Gate   netgate.Gate
	Logger *zap.Logger

	// Referrer 在请求未带 Referer 时写入；为空时不设置。
	Referrer string
}

// Fetch 抓取 pageURL 并解析为 goquery 文档。
func (f Fetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, log, err := f.do(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fault.Wrap(fault.TransportError, "fetch", err)
	}
	// 已取消的请求不产出任何结果。
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.TransportError, "fetch", err)
	}

	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		return nil, fault.Newf(fault.ParseError, "fetch", "不支持的 Content-Type：%q", ct)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, fault.Wrap(fault.ParseError, "fetch", err)
	}
	log.Debug("page parsed", zap.Int("bytes", len(b)))
	return doc, nil
}

// Verify 只关心状态码：200 视为有效，其余一律无效（不是错误）。
func (f Fetcher) Verify(ctx context.Context, pageURL string) (bool, error) {
	resp, _, err := f.do(ctx, pageURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode == http.StatusOK, nil
}

func (f Fetcher) do(ctx context.Context, pageURL string) (*http.Response, *zap.Logger, error) {
	log := f.logger().With(zap.String("url", pageURL), zap.String("req_id", uuid.NewString()))

	gate := f.Gate
	if gate == nil {
		gate = netgate.Always
	}
	if !gate.Online(ctx) {
		log.Debug("network unavailable, request skipped")
		return nil, nil, fault.New(fault.NetworkUnavailable, "fetch", "")
	}

	if err := checkPageURL(pageURL); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fault.Wrap(fault.InvalidArgument, "fetch", err)
	}
	if f.Referrer != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", f.Referrer)
	}

	c := f.Client
	if c == nil {
		c = http.DefaultClient
	}
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		log.Debug("request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, nil, fault.Wrap(fault.TransportError, "fetch", err)
	}
	log.Debug("response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, log, nil
}

func (f Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func checkPageURL(pageURL string) error {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return fault.Wrap(fault.InvalidArgument, "fetch", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fault.Newf(fault.InvalidArgument, "fetch", "URL 无效：%q", pageURL)
	}
	return nil
}

// isHTMLContentType 与常见 HTML 解析器的默认策略一致：
// 缺失时放行；text/*、application/xml、application/*+xml 放行；其余拒绝。
func isHTMLContentType(ct string) bool {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/xml":
		return true
	case strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+xml"):
		return true
	default:
		return false
	}
}
