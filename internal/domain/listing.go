package domain

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/John-Robertt/magneto/internal/fault"
)

// Category 是列表页上的应用分类：展示名 + 商店内部 ID（例如 TOOLS）。
type Category struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// PackageListingInfo 是一次请求的只读结果快照。
//
// 约束：
// - 只能通过 Builder.Build 构造；构造后没有任何修改入口
// - PackageURL 的 id 参数必须等于 PackageName
// - 可选字段“缺失”与“空串”含义不同：缺失=未请求/未找到，空串=找到但为空
type PackageListingInfo struct {
	name string
	url  string

	urlValid  *bool
	texts     map[Field]string
	changelog []string
	hasLog    bool
	category  *Category
}

func (p PackageListingInfo) PackageName() string { return p.name }
func (p PackageListingInfo) PackageURL() string  { return p.url }

func (p PackageListingInfo) IsURLValid() (bool, bool) {
	if p.urlValid == nil {
		return false, false
	}
	return *p.urlValid, true
}

// Text 返回文本型字段的值；ok=false 表示该字段不存在。
func (p PackageListingInfo) Text(f Field) (string, bool) {
	v, ok := p.texts[f]
	return v, ok
}

func (p PackageListingInfo) Version() (string, bool)        { return p.Text(FieldVersion) }
func (p PackageListingInfo) Downloads() (string, bool)      { return p.Text(FieldDownloads) }
func (p PackageListingInfo) PublishedDate() (string, bool)  { return p.Text(FieldPublishedDate) }
func (p PackageListingInfo) OSRequirements() (string, bool) { return p.Text(FieldOSRequirements) }
func (p PackageListingInfo) ContentRating() (string, bool)  { return p.Text(FieldContentRating) }
func (p PackageListingInfo) AppRating() (string, bool)      { return p.Text(FieldAppRating) }
func (p PackageListingInfo) AppRatingCount() (string, bool) { return p.Text(FieldAppRatingCount) }
func (p PackageListingInfo) IconURL() (string, bool)        { return p.Text(FieldIconURL) }

// Changelog 返回副本，调用方修改不会影响快照本身。
func (p PackageListingInfo) Changelog() ([]string, bool) {
	if !p.hasLog {
		return nil, false
	}
	return append([]string{}, p.changelog...), true
}

func (p PackageListingInfo) Category() (Category, bool) {
	if p.category == nil {
		return Category{}, false
	}
	return *p.category, true
}

// Has 判断字段是否已设置。
func (p PackageListingInfo) Has(f Field) bool {
	switch f {
	case FieldChangelog:
		return p.hasLog
	case FieldCategory:
		return p.category != nil
	default:
		_, ok := p.texts[f]
		return ok
	}
}

// Value 以通用形式返回字段值：string / []string / Category。
func (p PackageListingInfo) Value(f Field) (any, bool) {
	switch f {
	case FieldChangelog:
		v, ok := p.Changelog()
		return v, ok
	case FieldCategory:
		v, ok := p.Category()
		return v, ok
	default:
		v, ok := p.Text(f)
		return v, ok
	}
}

type listingJSON struct {
	PackageName    string    `json:"package_name"`
	PackageURL     string    `json:"package_url"`
	IsURLValid     *bool     `json:"is_url_valid,omitempty"`
	Version        *string   `json:"version,omitempty"`
	Downloads      *string   `json:"downloads,omitempty"`
	PublishedDate  *string   `json:"published_date,omitempty"`
	OSRequirements *string   `json:"os_requirements,omitempty"`
	ContentRating  *string   `json:"content_rating,omitempty"`
	AppRating      *string   `json:"app_rating,omitempty"`
	AppRatingCount *string   `json:"app_rating_count,omitempty"`
	Changelog      *[]string `json:"changelog,omitempty"`
	Category       *Category `json:"category,omitempty"`
	IconURL        *string   `json:"icon_url,omitempty"`
}

// MarshalJSON 只输出已存在的字段（缺失字段不出现在 JSON 中）。
func (p PackageListingInfo) MarshalJSON() ([]byte, error) {
	text := func(f Field) *string {
		if v, ok := p.texts[f]; ok {
			return &v
		}
		return nil
	}
	out := listingJSON{
		PackageName:    p.name,
		PackageURL:     p.url,
		IsURLValid:     p.urlValid,
		Version:        text(FieldVersion),
		Downloads:      text(FieldDownloads),
		PublishedDate:  text(FieldPublishedDate),
		OSRequirements: text(FieldOSRequirements),
		ContentRating:  text(FieldContentRating),
		AppRating:      text(FieldAppRating),
		AppRatingCount: text(FieldAppRatingCount),
		Category:       p.category,
		IconURL:        text(FieldIconURL),
	}
	if p.hasLog {
		cl := p.changelog
		out.Changelog = &cl
	}
	return json.Marshal(out)
}

// Builder 累积一次请求中提取到的字段，最终产出不可变的 PackageListingInfo。
// Builder 本身不是并发安全的；一次请求一个 Builder。
type Builder struct {
	name string
	url  string

	urlValid  *bool
	texts     map[Field]string
	changelog []string
	hasLog    bool
	category  *Category

	err error
}

func NewBuilder(packageName, packageURL string) *Builder {
	return &Builder{
		name:  packageName,
		url:   packageURL,
		texts: make(map[Field]string),
	}
}

func (b *Builder) URLValid(v bool) *Builder {
	b.urlValid = &v
	return b
}

// Text 设置文本型字段；对 changelog/category 调用属于误用，会在 Build 时报错。
func (b *Builder) Text(f Field, v string) *Builder {
	if f == FieldChangelog || f == FieldCategory || !f.Valid() {
		if b.err == nil {
			b.err = fault.Newf(fault.InvalidArgument, "build", "字段 %s 不是文本字段", f)
		}
		return b
	}
	b.texts[f] = v
	return b
}

func (b *Builder) Changelog(items []string) *Builder {
	b.changelog = append([]string{}, items...)
	b.hasLog = true
	return b
}

func (b *Builder) Category(c Category) *Builder {
	b.category = &c
	return b
}

// Build 校验不变量并返回快照。Builder 在 Build 之后仍可复用，但已返回的快照不受影响。
func (b *Builder) Build() (PackageListingInfo, error) {
	if b.err != nil {
		return PackageListingInfo{}, b.err
	}
	if strings.TrimSpace(b.name) == "" {
		return PackageListingInfo{}, fault.New(fault.InvalidArgument, "build", "包名为空")
	}
	id, err := packageIDFromURL(b.url)
	if err != nil {
		return PackageListingInfo{}, fault.Wrap(fault.InvariantViolation, "build", err)
	}
	if id != b.name {
		return PackageListingInfo{}, fault.Newf(fault.InvariantViolation, "build", "URL 中的包名 %q 与 %q 不一致", id, b.name)
	}

	texts := make(map[Field]string, len(b.texts))
	for k, v := range b.texts {
		texts[k] = v
	}
	out := PackageListingInfo{
		name:   b.name,
		url:    b.url,
		texts:  texts,
		hasLog: b.hasLog,
	}
	if b.urlValid != nil {
		v := *b.urlValid
		out.urlValid = &v
	}
	if b.hasLog {
		out.changelog = append([]string{}, b.changelog...)
	}
	if b.category != nil {
		c := *b.category
		out.category = &c
	}
	return out, nil
}

func packageIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Query().Get("id"), nil
}
