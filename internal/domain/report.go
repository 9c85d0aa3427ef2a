package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// GrabReport 是 CLI 对外稳定输出（stdout JSON / --out 文件）的结构。
type GrabReport struct {
	Locale      string `json:"locale"`
	SingleFetch bool   `json:"single_fetch"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// ItemResult 是一次 (package, field) 提取的结果。
// Value 的具体类型取决于字段：string / []string / Category。
type ItemResult struct {
	Package string `json:"package"`
	URL     string `json:"url"`
	Field   Field  `json:"field"`

	Status    string `json:"status"`
	Value     any    `json:"value,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 package 字典序，其次按字段声明顺序
// 3) summary 由 items 计算得出
func (r *GrabReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		return a.Field < b.Field
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusOK:
			s.OK++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（items 为空时输出 [] 而不是 null）。
func (r GrabReport) MarshalJSON() ([]byte, error) {
	type Alias GrabReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}
