package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/extractor"
	"github.com/use-agent/scrapekit/models"
)

const page = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<h1>  Hi  </h1>
<p class="lead">First paragraph</p>
<p>Second <b>bold</b> paragraph</p>
<a href="/one">One</a>
<a href="https://other.example/two">Two</a>
<img src="/logo.png" alt=" Logo ">
<img src="/logo.png" alt="duplicate">
<img src="data:image/png;base64,AAAA">
</body>
</html>`

func field(t *testing.T, data *models.ExtractedData, name string) models.FieldValue {
	t.Helper()
	v, ok := data.Get(name)
	require.True(t, ok, "field %q missing", name)
	return v
}

func TestExtract_CSS(t *testing.T) {
	t.Parallel()

	t.Run("single match is a trimmed string", func(t *testing.T) {
		t.Parallel()

		data, err := extractor.Extract(`<h1>Hi</h1>`, models.NewFieldMap("title", "h1"), models.DialectCSS)
		require.NoError(t, err)

		v := field(t, data, "title")
		assert.Equal(t, models.FieldSingle, v.Kind)
		assert.Equal(t, "Hi", v.String())
	})

	t.Run("cardinality maps to null, scalar and list", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap(
			"missing", "table",
			"title", "h1",
			"paragraphs", "p",
		)
		data, err := extractor.Extract(page, fields, models.DialectCSS)
		require.NoError(t, err)

		assert.Equal(t, models.FieldNull, field(t, data, "missing").Kind)
		assert.Equal(t, "Hi", field(t, data, "title").String())

		paragraphs := field(t, data, "paragraphs")
		assert.Equal(t, models.FieldList, paragraphs.Kind)
		assert.Equal(t, []string{"First paragraph", "Second bold paragraph"}, paragraphs.Values)
	})

	t.Run("selector groups keep document order", func(t *testing.T) {
		t.Parallel()

		data, err := extractor.Extract(page, models.NewFieldMap("mixed", "p.lead, h1"), models.DialectCSS)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hi", "First paragraph"}, field(t, data, "mixed").Values)
	})

	t.Run("invalid selector only fails its own field", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap(
			"before", "h1",
			"broken", "p[",
			"after", "p.lead",
		)
		data, err := extractor.Extract(page, fields, models.DialectCSS)
		require.NoError(t, err)

		assert.Equal(t, "Hi", field(t, data, "before").String())
		broken := field(t, data, "broken")
		assert.Equal(t, models.FieldError, broken.Kind)
		assert.Contains(t, broken.Err, "invalid css selector")
		assert.Equal(t, "First paragraph", field(t, data, "after").String())
	})

	t.Run("result order follows field order", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap("z", "h1", "a", "p", "m", "a")
		data, err := extractor.Extract(page, fields, models.DialectCSS)
		require.NoError(t, err)

		var keys []string
		for pair := data.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		assert.Equal(t, []string{"z", "a", "m"}, keys)
	})
}

func TestExtract_XPath(t *testing.T) {
	t.Parallel()

	t.Run("attribute axis returns values in document order", func(t *testing.T) {
		t.Parallel()

		data, err := extractor.Extract(page, models.NewFieldMap("links", "//a/@href"), models.DialectXPath)
		require.NoError(t, err)

		links := field(t, data, "links")
		assert.Equal(t, models.FieldList, links.Kind)
		assert.Equal(t, []string{"/one", "https://other.example/two"}, links.Values)
	})

	t.Run("element and text nodes are trimmed", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap(
			"title", "//h1",
			"text", "//h1/text()",
			"logo", "//img[@alt=' Logo ']/@src",
			"none", "//table",
		)
		data, err := extractor.Extract(page, fields, models.DialectXPath)
		require.NoError(t, err)

		assert.Equal(t, "Hi", field(t, data, "title").String())
		assert.Equal(t, "Hi", field(t, data, "text").String())
		assert.Equal(t, "/logo.png", field(t, data, "logo").String())
		assert.Equal(t, models.FieldNull, field(t, data, "none").Kind)
	})

	t.Run("scalar expressions yield a single value", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap(
			"count", "count(//a)",
			"title", "string(//title)",
			"empty", "string(//table)",
		)
		data, err := extractor.Extract(page, fields, models.DialectXPath)
		require.NoError(t, err)

		assert.Equal(t, "2", field(t, data, "count").String())
		assert.Equal(t, "Test Page", field(t, data, "title").String())
		assert.Equal(t, models.FieldNull, field(t, data, "empty").Kind)
	})

	t.Run("malformed expression does not abort siblings", func(t *testing.T) {
		t.Parallel()

		fields := models.NewFieldMap(
			"broken", "//a[@href",
			"title", "//h1",
		)
		data, err := extractor.Extract(page, fields, models.DialectXPath)
		require.NoError(t, err)

		broken := field(t, data, "broken")
		assert.Equal(t, models.FieldError, broken.Kind)
		assert.Contains(t, broken.Err, "invalid xpath expression")
		assert.Equal(t, "Hi", field(t, data, "title").String())
	})
}

func TestDocument_Field_UnknownDialect(t *testing.T) {
	t.Parallel()

	d, err := extractor.Parse(page)
	require.NoError(t, err)

	v := d.Field("h1", "regex")
	assert.Equal(t, models.FieldError, v.Kind)
}

func TestDocument_Images(t *testing.T) {
	t.Parallel()

	d, err := extractor.Parse(page)
	require.NoError(t, err)

	images := d.Images("https://example.com/articles/1")
	assert.Equal(t, []models.Image{
		{Src: "https://example.com/logo.png", Alt: "Logo"},
	}, images)
}

func TestDocument_Markdown(t *testing.T) {
	t.Parallel()

	d, err := extractor.Parse(page)
	require.NoError(t, err)

	md, err := d.Markdown("https://example.com/articles/1")
	require.NoError(t, err)
	assert.Contains(t, md, "# Hi")
	assert.Contains(t, md, "https://example.com/one")
	assert.NotContains(t, md, "<title>")
}

func TestCheckSelector(t *testing.T) {
	t.Parallel()

	assert.NoError(t, extractor.CheckSelector("div#main > p", models.DialectCSS))
	assert.NoError(t, extractor.CheckSelector("//div[@id='main']", models.DialectXPath))
	assert.Error(t, extractor.CheckSelector("div[", models.DialectCSS))
	assert.Error(t, extractor.CheckSelector("//div[", models.DialectXPath))
	assert.Error(t, extractor.CheckSelector("div", "regex"))
}
