package domain

import (
	"fmt"
	"strings"
)

// Field 是列表页上可提取的语义字段（封闭集合）。
// 声明顺序即展示/排序顺序。
type Field int

const (
	FieldVersion Field = iota + 1
	FieldDownloads
	FieldPublishedDate
	FieldOSRequirements
	FieldContentRating
	FieldAppRating
	FieldAppRatingCount
	FieldChangelog
	FieldCategory
	FieldIconURL
)

var fieldNames = map[Field]string{
	FieldVersion:        "version",
	FieldDownloads:      "downloads",
	FieldPublishedDate:  "published_date",
	FieldOSRequirements: "os_requirements",
	FieldContentRating:  "content_rating",
	FieldAppRating:      "app_rating",
	FieldAppRatingCount: "app_rating_count",
	FieldChangelog:      "changelog",
	FieldCategory:       "category",
	FieldIconURL:        "icon_url",
}

// AllFields 按声明顺序返回全部字段。
func AllFields() []Field {
	out := make([]Field, 0, len(fieldNames))
	for f := FieldVersion; f <= FieldIconURL; f++ {
		out = append(out, f)
	}
	return out
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", int(f))
}

func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

// ParseField 接受规范名（published_date）以及 CLI 常用的短横线写法（published-date）。
func ParseField(s string) (Field, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for f, n := range fieldNames {
		if n == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("未知字段：%q", s)
}

func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("未知字段：%d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Field) UnmarshalText(b []byte) error {
	v, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
