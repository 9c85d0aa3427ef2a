package playstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/magneto/internal/domain"
	"github.com/John-Robertt/magneto/internal/fault"
)

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "读取 fixture 失败")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	require.NoError(t, err)
	return doc
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtract_MinimalVersion(t *testing.T) {
	doc := docFrom(t, `<div itemprop="softwareVersion">1.2.3</div>`)
	v, err := Extract(doc, domain.FieldVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
}

func TestExtract_Fixture(t *testing.T) {
	doc := loadDoc(t, "listing.html")

	want := map[domain.Field]string{
		domain.FieldVersion:        "1.2.3",
		domain.FieldDownloads:      "1,000,000 - 5,000,000",
		domain.FieldPublishedDate:  "March 5, 2017",
		domain.FieldOSRequirements: "4.1 and up",
		domain.FieldContentRating:  "Everyone",
		domain.FieldAppRating:      "4.5",
		domain.FieldAppRatingCount: "12,345",
		domain.FieldIconURL:        "https://lh3.googleusercontent.com/icon-abc=w300",
	}
	for f, w := range want {
		got, err := Extract(doc, f)
		require.NoError(t, err, "field=%s", f)
		assert.Equal(t, w, got, "field=%s", f)
	}
}

func TestExtract_OwnTextExcludesDescendants(t *testing.T) {
	doc := docFrom(t, `<div itemprop="contentRating">Teen <span>Violence</span> rated</div>`)
	v, err := Extract(doc, domain.FieldContentRating)
	require.NoError(t, err)
	assert.Equal(t, "Teen rated", v)
}

func TestExtract_OwnTextJoinsAdjacentTextNodes(t *testing.T) {
	cases := map[string]string{
		`<div itemprop="softwareVersion">1.2<!-- build -->.3</div>`:       "1.2.3",
		`<div itemprop="softwareVersion">1.<span></span>2.3</div>`:        "1.2.3",
		`<div itemprop="softwareVersion">2.0<b>beta</b>-rc1</div>`:        "2.0-rc1",
		`<div itemprop="softwareVersion"> 3.1 <!-- x --> build 7 </div>`: "3.1 build 7",
	}
	for in, want := range cases {
		v, err := Extract(docFrom(t, in), domain.FieldVersion)
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
}

func TestExtract_NoMatchIsFieldNotFound(t *testing.T) {
	doc := loadDoc(t, "empty.html")
	for _, f := range []domain.Field{domain.FieldVersion, domain.FieldAppRating, domain.FieldIconURL} {
		v, err := Extract(doc, f)
		require.Error(t, err, "field=%s", f)
		assert.Equal(t, fault.FieldNotFound, fault.KindOf(err))
		assert.Equal(t, "", v)
	}
}

func TestExtract_TextlessElementIsFieldNotFound(t *testing.T) {
	doc := loadDoc(t, "varies.html")
	_, err := Extract(doc, domain.FieldDownloads)
	require.Error(t, err)
	assert.Equal(t, fault.FieldNotFound, fault.KindOf(err))
}

func TestExtract_ElementKindMatters(t *testing.T) {
	// reviews-num 只认 span；div 上的同名 class 不算。
	doc := docFrom(t, `<div class="reviews-num">99</div>`)
	_, err := Extract(doc, domain.FieldAppRatingCount)
	assert.Equal(t, fault.FieldNotFound, fault.KindOf(err))
}

func TestExtract_IconAbsoluteSrcUnchanged(t *testing.T) {
	doc := docFrom(t, `<img itemprop="image" src="https://cdn.test/i.png">`)
	v, err := Extract(doc, domain.FieldIconURL)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/i.png", v)
}

func TestExtract_WrongKind(t *testing.T) {
	doc := loadDoc(t, "listing.html")
	_, err := Extract(doc, domain.FieldChangelog)
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
	_, err = ExtractList(doc, domain.FieldVersion)
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
	_, err = Extract(doc, domain.Field(42))
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestExtractList_ChangelogInDocumentOrder(t *testing.T) {
	doc := loadDoc(t, "listing.html")
	items, err := ExtractList(doc, domain.FieldChangelog)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fixed crash on startup", "Improved of sync", "New dark theme"}, items)
}

func TestExtractList_EmptyIsNotAnError(t *testing.T) {
	doc := loadDoc(t, "empty.html")
	items, err := ExtractList(doc, domain.FieldChangelog)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, "", Flatten(items))
}

func TestExtractCategory_FirstMatch(t *testing.T) {
	doc := loadDoc(t, "listing.html")
	c, err := ExtractCategory(doc)
	require.NoError(t, err)
	assert.Equal(t, domain.Category{Name: "Tools", ID: "TOOLS"}, c)
}

func TestExtractCategory_Missing(t *testing.T) {
	_, err := ExtractCategory(loadDoc(t, "empty.html"))
	assert.Equal(t, fault.FieldNotFound, fault.KindOf(err))
}

func TestApply_AllFields(t *testing.T) {
	doc := loadDoc(t, "listing.html")
	b := domain.NewBuilder("com.example.app", DefaultBaseURL+"?id=com.example.app")
	require.NoError(t, Apply(doc, b, domain.AllFields()...))

	info, err := b.Build()
	require.NoError(t, err)
	for _, f := range domain.AllFields() {
		assert.True(t, info.Has(f), "field=%s", f)
	}
	cl, _ := info.Changelog()
	assert.Len(t, cl, 3)
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	doc := loadDoc(t, "varies.html")
	b := domain.NewBuilder("com.example.app", DefaultBaseURL+"?id=com.example.app")
	err := Apply(doc, b, domain.FieldVersion, domain.FieldDownloads, domain.FieldChangelog)
	require.Error(t, err)
	assert.Equal(t, fault.FieldNotFound, fault.KindOf(err))
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "a\n\nb\n\nc", Flatten([]string{"a", "b", "c"}))
	assert.Equal(t, "", Flatten(nil))
	assert.Equal(t, "", Flatten([]string{}))
	assert.Equal(t, "a", Flatten([]string{"a"}))
}

func TestTagFieldMap_CoversEveryField(t *testing.T) {
	for _, f := range domain.AllFields() {
		s, ok := SelectorFor(f)
		require.True(t, ok, "缺少字段 %s 的选择器", f)
		assert.Equal(t, f, s.Field)
		assert.NotEmpty(t, s.Query)
	}
}

func TestCategoryID(t *testing.T) {
	assert.Equal(t, "GAME_PUZZLE", categoryID("https://play.google.com/store/apps/category/GAME_PUZZLE?hl=en"))
	assert.Equal(t, "TOOLS", categoryID("/store/apps/category/TOOLS/"))
	assert.Equal(t, "", categoryID(""))
	assert.Equal(t, "", categoryID("?x=1"))
}
