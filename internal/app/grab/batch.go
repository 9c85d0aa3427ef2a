package grab

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/magneto/internal/domain"
)

// Request 是一次独立的 (package, field) 抓取。
type Request struct {
	Package string
	Field   domain.Field
}

// Outcome 记录单个 Request 的结果；Err 非空时 Info 为零值。
type Outcome struct {
	Request
	Info domain.PackageListingInfo
	Err  error
}

// Batch 以至多 limit 的并发执行一组互相独立的 Fetch。
//
// 约束：
// - 每个 Request 各自完成一次页面抓取（不合并、不去重）
// - 单个失败不影响其它 Request；结果顺序与输入一致
func Batch(ctx context.Context, c *Client, reqs []Request, limit int) []Outcome {
	out := make([]Outcome, len(reqs))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range reqs {
		g.Go(func() error {
			info, err := c.Fetch(ctx, r.Field, r.Package)
			out[i] = Outcome{Request: r, Info: info, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Expand 把 packages × fields 展开为 Request 列表（package 优先）。
func Expand(packages []string, fields []domain.Field) []Request {
	reqs := make([]Request, 0, len(packages)*len(fields))
	for _, p := range packages {
		for _, f := range fields {
			reqs = append(reqs, Request{Package: p, Field: f})
		}
	}
	return reqs
}
