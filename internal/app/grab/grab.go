package grab

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
	"github.com/John-Robertt/magneto/internal/infra/httpx"
	"github.com/John-Robertt/magneto/internal/netgate"
	"github.com/John-Robertt/magneto/internal/provider/playstore"
	"github.com/John-Robertt/magneto/internal/upgrade"
)

// Config 是抓取引擎的全部静态配置。零值字段使用默认值。
// 在 New 之后只读，不存在进程级的可变单例。
type Config struct {
	BaseURL   string
	Locale    string
	Timeout   time.Duration
	Referrer  string
	UserAgent string
	ProxyURL  string
}

type Option func(*Client)

// WithGate 设置联网前置检查；默认 netgate.Always。
func WithGate(g netgate.Gate) Option {
	return func(c *Client) {
		if g != nil {
			c.gate = g
		}
	}
}

// WithHTTPClient 替换底层 http.Client（测试或自定义代理链路）。
// 传入的 client 未设置 Timeout 时，使用 Config.Timeout（作用于其浅拷贝，不修改调用方对象）；
// Referer 由抓取器统一补齐。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client 是面向调用方的操作集合。每次调用都独立完成一次页面抓取，
// 不去重、不缓存、不重试；构造后不可变，可并发使用。
type Client struct {
	cfg  Config
	hc   *http.Client
	gate netgate.Gate
	log  *zap.Logger

	fetcher playstore.Fetcher
}

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = playstore.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpx.DefaultTimeout
	}
	if strings.TrimSpace(cfg.Referrer) == "" {
		cfg.Referrer = httpx.DefaultReferrer
	}
	// 用一个必然合法的包名探测 base 是否可用，尽早暴露配置错误。
	if _, err := playstore.BuildURL(cfg.BaseURL, "probe", cfg.Locale); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:  cfg,
		gate: netgate.Always,
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.hc == nil {
		hc, err := httpx.NewClient(httpx.Options{
			Timeout:   cfg.Timeout,
			Referrer:  cfg.Referrer,
			UserAgent: cfg.UserAgent,
			ProxyURL:  cfg.ProxyURL,
		})
		if err != nil {
			return nil, fault.Wrap(fault.InvalidArgument, "config", err)
		}
		c.hc = hc
	} else if c.hc.Timeout <= 0 {
		hc := *c.hc
		hc.Timeout = cfg.Timeout
		c.hc = &hc
	}
	c.fetcher = playstore.Fetcher{Client: c.hc, Gate: c.gate, Logger: c.log, Referrer: cfg.Referrer}
	return c, nil
}

// Config 返回生效配置（已填充默认值）。
func (c *Client) Config() Config { return c.cfg }

// URL 返回列表页地址，不做任何 I/O。
func (c *Client) URL(pkg string) (string, error) {
	return playstore.BuildURL(c.cfg.BaseURL, pkg, c.cfg.Locale)
}

// Validate 请求列表页并记录 URL 是否有效（HTTP 200）。
func (c *Client) Validate(ctx context.Context, pkg string) (domain.PackageListingInfo, error) {
	name := strings.TrimSpace(pkg)
	u, err := c.URL(name)
	if err != nil {
		return domain.PackageListingInfo{}, err
	}
	ok, err := c.fetcher.Verify(ctx, u)
	if err != nil {
		return domain.PackageListingInfo{}, err
	}
	return domain.NewBuilder(name, u).URLValid(ok).Build()
}

// VerifiedURL 在列表页可访问时返回 URL，否则返回 InvalidArgument。
func (c *Client) VerifiedURL(ctx context.Context, pkg string) (string, error) {
	info, err := c.Validate(ctx, pkg)
	if err != nil {
		return "", err
	}
	if ok, _ := info.IsURLValid(); !ok {
		return "", fault.Newf(fault.InvalidArgument, "verify", "列表页不可访问：%s", info.PackageURL())
	}
	return info.PackageURL(), nil
}

// Fetch 抓取单个字段。
func (c *Client) Fetch(ctx context.Context, f domain.Field, pkg string) (domain.PackageListingInfo, error) {
	return c.Info(ctx, pkg, f)
}

// Info 用一次页面抓取提取一组字段；fields 为空时提取全部字段。
// 任一字段失败即整体失败（不返回部分结果）。
func (c *Client) Info(ctx context.Context, pkg string, fields ...domain.Field) (domain.PackageListingInfo, error) {
	if len(fields) == 0 {
		fields = domain.AllFields()
	}
	for _, f := range fields {
		if _, ok := playstore.SelectorFor(f); !ok {
			return domain.PackageListingInfo{}, fault.Newf(fault.InvalidArgument, "info", "未知字段 %s", f)
		}
	}

	name := strings.TrimSpace(pkg)
	u, err := c.URL(name)
	if err != nil {
		return domain.PackageListingInfo{}, err
	}
	doc, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return domain.PackageListingInfo{}, err
	}

	b := domain.NewBuilder(name, u)
	if err := playstore.Apply(doc, b, fields...); err != nil {
		c.log.Debug("extract failed", zap.String("package", name), zap.Error(err))
		return domain.PackageListingInfo{}, err
	}
	return b.Build()
}

// Text 抓取单个文本字段并直接返回值。
func (c *Client) Text(ctx context.Context, f domain.Field, pkg string) (string, error) {
	if f == domain.FieldChangelog || f == domain.FieldCategory {
		return "", fault.Newf(fault.InvalidArgument, "text", "%s 不是文本字段", f)
	}
	info, err := c.Fetch(ctx, f, pkg)
	if err != nil {
		return "", err
	}
	v, _ := info.Text(f)
	return v, nil
}

func (c *Client) Version(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldVersion, pkg)
}

func (c *Client) Downloads(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldDownloads, pkg)
}

func (c *Client) PublishedDate(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldPublishedDate, pkg)
}

func (c *Client) OSRequirements(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldOSRequirements, pkg)
}

func (c *Client) ContentRating(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldContentRating, pkg)
}

func (c *Client) AppRating(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldAppRating, pkg)
}

func (c *Client) AppRatingCount(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldAppRatingCount, pkg)
}

func (c *Client) IconURL(ctx context.Context, pkg string) (string, error) {
	return c.Text(ctx, domain.FieldIconURL, pkg)
}

func (c *Client) Category(ctx context.Context, pkg string) (domain.Category, error) {
	info, err := c.Fetch(ctx, domain.FieldCategory, pkg)
	if err != nil {
		return domain.Category{}, err
	}
	v, _ := info.Category()
	return v, nil
}

// Changelog 返回“最近更新”条目；页面没有 changelog 时返回空切片。
func (c *Client) Changelog(ctx context.Context, pkg string) ([]string, error) {
	info, err := c.Fetch(ctx, domain.FieldChangelog, pkg)
	if err != nil {
		return nil, err
	}
	v, _ := info.Changelog()
	return v, nil
}

// ChangelogText 返回扁平化后的 changelog（条目之间以空行分隔）。
func (c *Client) ChangelogText(ctx context.Context, pkg string) (string, error) {
	items, err := c.Changelog(ctx, pkg)
	if err != nil {
		return "", err
	}
	return playstore.Flatten(items), nil
}

// IsUpgradeAvailable 抓取远端版本并与调用方提供的本地版本比较。
//
// 错误归类：
// - 联网前置检查失败/参数错误：原样返回
// - 抓取或提取阶段失败：包装为 UpgradeCheckFailed（原因可继续判断）
// - 远端为 "Varies with device"：VersionVariesByDevice
func (c *Client) IsUpgradeAvailable(ctx context.Context, pkg, localVersion string) (bool, error) {
	if strings.TrimSpace(localVersion) == "" {
		return false, fault.New(fault.InvalidArgument, "upgrade", "本地版本为空")
	}
	remote, err := c.Version(ctx, pkg)
	if err != nil {
		switch fault.KindOf(err) {
		case fault.NetworkUnavailable, fault.InvalidArgument:
			return false, err
		default:
			return false, fault.Wrap(fault.UpgradeCheckFailed, "upgrade", err)
		}
	}
	up, err := upgrade.Check(localVersion, remote)
	if err != nil {
		return false, err
	}
	c.log.Debug("upgrade check",
		zap.String("package", strings.TrimSpace(pkg)),
		zap.String("local", localVersion),
		zap.String("remote", remote),
		zap.Stringer("direction", upgrade.Compare(localVersion, remote)),
		zap.Bool("available", up),
	)
	return up, nil
}

// IsUpgradeAvailableFor 先通过 lookup 解析本地版本；解析失败时直接返回 PackageNotInstalled，不发起网络请求。
func (c *Client) IsUpgradeAvailableFor(ctx context.Context, pkg string, lookup upgrade.Lookup) (bool, error) {
	local, err := upgrade.Resolve(lookup, strings.TrimSpace(pkg))
	if err != nil {
		return false, err
	}
	return c.IsUpgradeAvailable(ctx, pkg, local)
}
