package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/magneto/internal/app/grab"
	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
	"github.com/John-Robertt/magneto/internal/infra/fsx"
)

type infoFlags struct {
	fields      []string
	singleFetch bool
	out         string
}

func (c *cli) infoCmd() *cobra.Command {
	var fl infoFlags
	cmd := &cobra.Command{
		Use:   "info [pkg]...",
		Short: "Fetch several fields for one or more packages",
		Long: "Fetch several fields for one or more packages.\n\n" +
			"By default every (package, field) pair is fetched independently; --single-fetch\n" +
			"extracts all fields of a package from one page load instead.\n" +
			"Without arguments the configured package is used.\n" +
			"stdout is a JSON report unless it is a terminal.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInfo(cmd, args, fl)
		},
	}
	cmd.Flags().StringSliceVar(&fl.fields, "fields", nil, "Comma separated fields (default: all)")
	cmd.Flags().BoolVar(&fl.singleFetch, "single-fetch", false, "Fetch each package page once for all fields")
	cmd.Flags().StringVarP(&fl.out, "out", "o", "", "Also write the JSON report to this file")
	return cmd
}

func (c *cli) runInfo(cmd *cobra.Command, pkgs []string, fl infoFlags) error {
	fields, err := parseFields(fl.fields)
	if err != nil {
		return err
	}
	s, err := c.open(cmd)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		pkg, err := s.pkgArg(nil, 0)
		if err != nil {
			return err
		}
		pkgs = []string{pkg}
	}

	rr := domain.GrabReport{
		Locale:      s.eff.Locale,
		SingleFetch: fl.singleFetch,
		StartedAt:   time.Now(),
	}
	if fl.singleFetch {
		rr.Items = infoSingleFetch(cmd.Context(), s, pkgs, fields)
	} else {
		rr.Items = infoBatch(cmd.Context(), s, pkgs, fields)
	}
	rr.FinishedAt = time.Now()
	rr.Finalize()

	if fl.out != "" {
		path := fl.out
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.cwd, path)
		}
		if err := writeReportFile(path, rr); err != nil {
			return fmt.Errorf("写入报告失败 %q：%w", path, err)
		}
		s.log.Debug("report written", zap.String("path", path))
	}

	c.emitReport(rr)
	if rr.Summary.Failed > 0 {
		return errItemsFailed
	}
	return nil
}

func parseFields(names []string) ([]domain.Field, error) {
	if len(names) == 0 {
		return domain.AllFields(), nil
	}
	out := make([]domain.Field, 0, len(names))
	seen := map[domain.Field]bool{}
	for _, n := range names {
		f, err := domain.ParseField(n)
		if err != nil {
			return nil, fault.Wrap(fault.InvalidArgument, "info", err)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// infoBatch 对每个 (package, field) 独立抓取。
func infoBatch(ctx context.Context, s *session, pkgs []string, fields []domain.Field) []domain.ItemResult {
	outcomes := grab.Batch(ctx, s.client, grab.Expand(pkgs, fields), s.eff.Concurrency)
	items := make([]domain.ItemResult, 0, len(outcomes))
	for _, o := range outcomes {
		items = append(items, itemResult(s, o.Package, o.Field, o.Info, o.Err))
	}
	return items
}

// infoSingleFetch 每个 package 只抓取一次页面；该页任一字段失败时，该 package 的所有字段都记为失败。
func infoSingleFetch(ctx context.Context, s *session, pkgs []string, fields []domain.Field) []domain.ItemResult {
	type result struct {
		info domain.PackageListingInfo
		err  error
	}
	results := make([]result, len(pkgs))

	var g errgroup.Group
	g.SetLimit(s.eff.Concurrency)
	for i, p := range pkgs {
		g.Go(func() error {
			info, err := s.client.Info(ctx, p, fields...)
			results[i] = result{info: info, err: err}
			return nil
		})
	}
	_ = g.Wait()

	items := make([]domain.ItemResult, 0, len(pkgs)*len(fields))
	for i, p := range pkgs {
		for _, f := range fields {
			items = append(items, itemResult(s, p, f, results[i].info, results[i].err))
		}
	}
	return items
}

func itemResult(s *session, pkg string, f domain.Field, info domain.PackageListingInfo, err error) domain.ItemResult {
	it := domain.ItemResult{Package: strings.TrimSpace(pkg), Field: f}
	if u, uerr := s.client.URL(pkg); uerr == nil {
		it.URL = u
	}
	if err != nil {
		k := fault.KindOf(err)
		it.Status = domain.StatusFailed
		it.ErrorCode = k.Code()
		it.ErrorKind = k.String()
		it.ErrorMsg = err.Error()
		s.log.Debug("item failed", zap.String("package", it.Package), zap.Stringer("field", f), zap.Error(err))
		return it
	}
	it.Status = domain.StatusOK
	it.Value, _ = info.Value(f)
	return it
}

func (c *cli) emitReport(rr domain.GrabReport) {
	if isTTY(c.stdout) {
		for _, it := range rr.Items {
			if it.Status == domain.StatusFailed {
				fmt.Fprintf(c.stderr, "%s %s: [%d %s] %s\n", it.Package, it.Field, it.ErrorCode, it.ErrorKind, it.ErrorMsg)
				continue
			}
			fmt.Fprintf(c.stdout, "%s %s: %s\n", it.Package, it.Field, summaryValue(it.Value))
		}
		fmt.Fprintf(c.stdout, "完成：ok=%d failed=%d\n", rr.Summary.OK, rr.Summary.Failed)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 GrabReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(c.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(c.stderr, "完成：ok=%d failed=%d\n", rr.Summary.OK, rr.Summary.Failed)
}

func summaryValue(v any) string {
	switch x := v.(type) {
	case []string:
		return changelogText(x)
	case domain.Category:
		return fmt.Sprintf("%s (%s)", x.Name, x.ID)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func writeReportFile(path string, rr domain.GrabReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFile(path, b)
}
