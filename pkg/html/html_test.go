package html

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument(t *testing.T) {
	doc := NewDocument("relay")
	body := doc.Body()
	body.H1().A("/", "relay")
	body.P("count: ", 3, " of ", "many")
	ul := body.Ul()
	for _, name := range []string{"a", "b"} {
		ul.Li().A("/x/"+name, name)
	}

	out, err := doc.String()
	require.NoError(t, err)
	assert.Equal(t, `<!DOCTYPE html><html><head><title>relay</title></head><body>`+
		`<h1><a href="/">relay</a></h1>`+
		`<p>count: 3 of many</p>`+
		`<ul><li><a href="/x/a">a</a></li><li><a href="/x/b">b</a></li></ul>`+
		`</body></html>`, out)
}

func TestEscaping(t *testing.T) {
	doc := NewDocument("<t>")
	doc.Body().A(`/q?a=1&b="2"`, "<script>")

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, `<title>&lt;t&gt;</title>`)
	assert.Contains(t, out, `href="/q?a=1&amp;b=&#34;2&#34;"`)
	assert.Contains(t, out, `&lt;script&gt;`)
}

func TestVoidElements(t *testing.T) {
	doc := NewDocument("form")
	form := doc.Body().Form().Attr("method", "get")
	form.Input().Attr("name", "link").Attr("type", "text")
	form.Br()

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, `<form method="get"><input name="link" type="text"/><br/></form>`)
}

func TestVoidContentIsRejected(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		doc := NewDocument("void")
		doc.Body().Input().Text("nope")

		assert.ErrorIs(t, doc.Err(), ErrVoidContent, "reported while building")
		_, err := doc.String()
		assert.ErrorIs(t, err, ErrVoidContent)
	})

	t.Run("child element", func(t *testing.T) {
		doc := NewDocument("void")
		doc.Body().Elm("BR").P("nope")

		require.ErrorIs(t, doc.Err(), ErrVoidContent)
		assert.Contains(t, doc.Err().Error(), "<p> in <br>")

		var buf bytes.Buffer
		assert.Error(t, doc.Render(&buf))
		assert.Zero(t, buf.Len(), "nothing is written for a broken document")
	})

	t.Run("first error is kept", func(t *testing.T) {
		doc := NewDocument("void")
		doc.Body().Input().Text("one")
		doc.Body().Elm("hr").Text("two")
		assert.Contains(t, doc.Err().Error(), "<input>")
	})
}

func TestAttrOverwrites(t *testing.T) {
	doc := NewDocument("attr")
	doc.Body().Elm("div").Attr("class", "a").Attr("class", "b")

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="b"></div>`)
}

func TestIsVoid(t *testing.T) {
	assert.True(t, IsVoid("img"))
	assert.True(t, IsVoid("WBR"))
	assert.False(t, IsVoid("p"))
}
