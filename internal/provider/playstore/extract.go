package playstore

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
)

// OwnText 返回节点“自身”的文本：直接子文本节点原样首尾相接，不包含后代元素中的文本。
// 只折叠原文中已有的空白并 trim，不在节点之间插入分隔符。
func OwnText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return normSpace(b.String())
}

// Extract 提取单值字段（KindText / KindAttr）：取首个匹配元素。
//
// 约束：匹配为零，或首个元素取值为空，都视为 FieldNotFound（不返回空串）。
func Extract(doc *goquery.Document, f domain.Field) (string, error) {
	s, err := selectorOf(f)
	if err != nil {
		return "", err
	}
	first := doc.FindMatcher(s.matcher).First()
	if first.Length() == 0 {
		return "", fault.Newf(fault.FieldNotFound, "extract", "%s：%s 无匹配", f, s.Query)
	}

	var v string
	switch s.Kind {
	case KindText:
		v = OwnText(first.Nodes[0])
	case KindAttr:
		raw, _ := first.Attr(s.Attr)
		v = absURL(raw)
	default:
		return "", fault.Newf(fault.InvalidArgument, "extract", "%s 不是单值字段", f)
	}
	if v == "" {
		return "", fault.Newf(fault.FieldNotFound, "extract", "%s：匹配元素取值为空", f)
	}
	return v, nil
}

// ExtractList 提取多值字段（KindList）：按文档顺序返回每个匹配元素的 own text。
// 没有匹配时返回空切片，不算错误。
func ExtractList(doc *goquery.Document, f domain.Field) ([]string, error) {
	s, err := selectorOf(f)
	if err != nil {
		return nil, err
	}
	if s.Kind != KindList {
		return nil, fault.Newf(fault.InvalidArgument, "extract", "%s 不是多值字段", f)
	}
	sel := doc.FindMatcher(s.matcher)
	out := make([]string, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, OwnText(n))
	}
	return out, nil
}

// ExtractCategory 提取分类：首个匹配元素的 own text 作为名称，href 的末段作为 ID。
func ExtractCategory(doc *goquery.Document) (domain.Category, error) {
	s, err := selectorOf(domain.FieldCategory)
	if err != nil {
		return domain.Category{}, err
	}
	first := doc.FindMatcher(s.matcher).First()
	if first.Length() == 0 {
		return domain.Category{}, fault.Newf(fault.FieldNotFound, "extract", "category：%s 无匹配", s.Query)
	}
	name := OwnText(first.Nodes[0])
	if name == "" {
		return domain.Category{}, fault.New(fault.FieldNotFound, "extract", "category：匹配元素取值为空")
	}
	href, _ := first.Attr(s.Attr)
	return domain.Category{Name: name, ID: categoryID(href)}, nil
}

// Apply 按 tagFieldMap 依次提取 fields 并写入 b；遇到第一个错误立即返回。
func Apply(doc *goquery.Document, b *domain.Builder, fields ...domain.Field) error {
	for _, f := range fields {
		s, err := selectorOf(f)
		if err != nil {
			return err
		}
		switch s.Kind {
		case KindList:
			items, err := ExtractList(doc, f)
			if err != nil {
				return err
			}
			b.Changelog(items)
		case KindCategory:
			c, err := ExtractCategory(doc)
			if err != nil {
				return err
			}
			b.Category(c)
		default:
			v, err := Extract(doc, f)
			if err != nil {
				return err
			}
			b.Text(f, v)
		}
	}
	return nil
}

func selectorOf(f domain.Field) (Selector, error) {
	s, ok := SelectorFor(f)
	if !ok {
		return Selector{}, fault.Newf(fault.InvalidArgument, "extract", "未知字段 %s", f)
	}
	return s, nil
}

// absURL 只处理协议相对地址（//host/x -> https://host/x），其余原样返回。
func absURL(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// categoryID 取 href 路径的最后一段，例如 /store/apps/category/TOOLS -> TOOLS。
func categoryID(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil || u.Path == "" {
		return ""
	}
	id := path.Base(strings.TrimSuffix(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
