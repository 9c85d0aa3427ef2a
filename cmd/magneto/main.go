package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/magneto/internal/app/grab"
	"github.com/John-Robertt/magneto/internal/config"
	"github.com/John-Robertt/magneto/internal/fault"
	"github.com/John-Robertt/magneto/internal/infra/logx"
	"github.com/John-Robertt/magneto/internal/netgate"
)

var version = "0.0.0"

// 连通性探测超时，独立于请求超时。
const probeTimeout = 2 * time.Second

// errItemsFailed 表示 info 有条目失败：报告已输出，只需要非零退出码。
var errItemsFailed = errors.New("部分条目失败")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli 是一次命令执行的上下文；测试用缓冲区替换 stdout/stderr。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	cwd    string
	lookup func(string) (string, bool)

	flags globalFlags
}

type globalFlags struct {
	configPath  string
	hl          string
	baseURL     string
	timeout     time.Duration
	concurrency int
	proxy       string
	probe       string
	offline     bool
	verbose     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	c := &cli{stdout: stdout, stderr: stderr, cwd: cwd, lookup: os.LookupEnv}
	return c.execute(ctx, args)
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, errItemsFailed) {
		fmt.Fprintf(c.stderr, "error: %s\n", describe(err))
	}
	return 1
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "magneto",
		Short:         "Read app listing details from the storefront",
		Long:          "magneto fetches a package's public listing page and extracts version, downloads, ratings, changelog and more.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "Config file (default: magneto.yaml|magneto.yml|magneto.json in cwd)")
	pf.StringVar(&c.flags.hl, "hl", "", "Listing locale, e.g. de or pt_BR")
	pf.StringVar(&c.flags.baseURL, "base-url", "", "Listing page base URL")
	pf.DurationVar(&c.flags.timeout, "timeout", 0, "Request timeout (default 5s)")
	pf.IntVarP(&c.flags.concurrency, "concurrency", "j", 0, "Max concurrent fetches for info (1-32)")
	pf.StringVar(&c.flags.proxy, "proxy", "", "HTTP proxy URL")
	pf.StringVar(&c.flags.probe, "probe", "", "host:port dialed before each fetch to check connectivity")
	pf.BoolVar(&c.flags.offline, "offline", false, "Treat the network as unavailable")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		c.urlCmd(),
		c.verifyCmd(),
		c.getCmd(),
		c.changelogCmd(),
		c.upgradeCmd(),
		c.infoCmd(),
	)
	return root
}

// session 是加载配置后构造出的运行期依赖。
type session struct {
	eff    config.EffectiveConfig
	client *grab.Client
	log    *zap.Logger
}

func (c *cli) open(cmd *cobra.Command) (*session, error) {
	fl := cmd.Flags()
	eff, err := config.LoadEffectiveEnv(c.cwd, config.CLIArgs{
		ConfigPath:     c.flags.configPath,
		BaseURL:        c.flags.baseURL,
		BaseURLSet:     fl.Changed("base-url"),
		Locale:         c.flags.hl,
		LocaleSet:      fl.Changed("hl"),
		Timeout:        c.flags.timeout,
		TimeoutSet:     fl.Changed("timeout"),
		ProxyURL:       c.flags.proxy,
		ProxyURLSet:    fl.Changed("proxy"),
		Probe:          c.flags.probe,
		ProbeSet:       fl.Changed("probe"),
		Concurrency:    c.flags.concurrency,
		ConcurrencySet: fl.Changed("concurrency"),
		Offline:        c.flags.offline,
	}, c.lookup)
	if err != nil {
		return nil, err
	}

	log := logx.New(c.stderr, c.flags.verbose)
	if eff.Source != "" {
		log.Debug("config loaded", zap.String("path", eff.Source))
	}

	gate := netgate.NewProbe(eff.Probe, probeTimeout)
	if eff.Offline {
		gate = netgate.Never
	}

	client, err := grab.New(grab.Config{
		BaseURL:   eff.BaseURL,
		Locale:    eff.Locale,
		Timeout:   eff.Timeout,
		Referrer:  eff.Referrer,
		UserAgent: eff.UserAgent,
		ProxyURL:  eff.ProxyURL,
	}, grab.WithGate(gate), grab.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &session{eff: eff, client: client, log: log}, nil
}

// describe 把错误渲染为一行：fault 错误带数字 code 与类别名，配置错误带 error_code。
func describe(err error) string {
	if config.Code(err) != "" {
		return err.Error()
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		k := fault.KindOf(err)
		return fmt.Sprintf("[%d %s] %v", k.Code(), k, err)
	}
	return err.Error()
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
