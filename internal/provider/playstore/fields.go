package playstore

import (
	"github.com/andybalholm/cascadia"

	"github.com/John-Robertt/magneto/internal/domain"
)

// Kind 决定某个字段按哪种方式从匹配元素中取值。
type Kind int

const (
	KindText     Kind = iota // 首个匹配元素的 own text
	KindList                 // 所有匹配元素的 own text（文档顺序）
	KindCategory             // 首个匹配元素的 own text + href 末段
	KindAttr                 // 首个匹配元素的属性值
)

// Selector 描述一个字段在列表页上的定位方式。
type Selector struct {
	Field domain.Field
	Query string
	Kind  Kind
	Attr  string // 仅 KindAttr / KindCategory 使用

	matcher cascadia.Selector
}

// tagFieldMap 是字段 -> 选择器的唯一来源。
// 新增字段只需要在 domain 增加常量并在这里加一行。
var tagFieldMap = buildTagFieldMap(
	Selector{Field: domain.FieldVersion, Query: `div[itemprop="softwareVersion"]`, Kind: KindText},
	Selector{Field: domain.FieldDownloads, Query: `div[itemprop="numDownloads"]`, Kind: KindText},
	Selector{Field: domain.FieldPublishedDate, Query: `div[itemprop="datePublished"]`, Kind: KindText},
	Selector{Field: domain.FieldOSRequirements, Query: `div[itemprop="operatingSystems"]`, Kind: KindText},
	Selector{Field: domain.FieldContentRating, Query: `div[itemprop="contentRating"]`, Kind: KindText},
	Selector{Field: domain.FieldAppRating, Query: `div[class="score"]`, Kind: KindText},
	Selector{Field: domain.FieldAppRatingCount, Query: `span[class="reviews-num"]`, Kind: KindText},
	Selector{Field: domain.FieldChangelog, Query: `.recent-change`, Kind: KindList},
	Selector{Field: domain.FieldCategory, Query: `[class="document-subtitle category"]`, Kind: KindCategory, Attr: "href"},
	Selector{Field: domain.FieldIconURL, Query: `img[itemprop="image"]`, Kind: KindAttr, Attr: "src"},
)

func buildTagFieldMap(rows ...Selector) map[domain.Field]Selector {
	m := make(map[domain.Field]Selector, len(rows))
	for _, r := range rows {
		if _, dup := m[r.Field]; dup {
			panic("playstore: duplicate selector for " + r.Field.String())
		}
		r.matcher = cascadia.MustCompile(r.Query)
		m[r.Field] = r
	}
	return m
}

// SelectorFor 返回字段对应的选择器。
func SelectorFor(f domain.Field) (Selector, bool) {
	s, ok := tagFieldMap[f]
	return s, ok
}
