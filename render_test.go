package epubtext

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// RenderHTML tests
// ---------------------------------------------------------------------------

func TestRenderHTML_RoundTripsSimpleMarkup(t *testing.T) {
	got := RenderHTML(Parse(`<p class="x">hi</p>`))
	want := `<p class="x">hi</p>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_EscapesDecodedText(t *testing.T) {
	// Known references decode and re-escape; unknown ones come out as
	// escaped literal text either way, never as raw markup.
	got := RenderHTML(Parse(`<p>a &amp; b &foo; c &lt;tag&gt;</p>`))
	want := `<p>a &amp; b &amp;foo; c &lt;tag&gt;</p>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_VoidElements(t *testing.T) {
	got := RenderHTML(Parse(`<p>a<br/>b<hr/></p>`))
	want := `<p>a<br/>b<hr/></p>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_EmptyNonVoidElementGetsEndTag(t *testing.T) {
	got := RenderHTML(Parse(`<div/>`))
	want := `<div></div>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_AttributesSorted(t *testing.T) {
	got := RenderHTML(Parse(`<a id="z" class="nav" href="x.html">go</a>`))
	want := `<a class="nav" href="x.html" id="z">go</a>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_TruncatedMarkup(t *testing.T) {
	got := RenderHTML(Parse(`<html><body><img src="ok.jpg"`))
	want := `<html><body></body></html>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderHTML_MultiRootFragmentHasNoWrapperTag(t *testing.T) {
	got := RenderHTML(Parse(`intro <b>bold</b> and <i>italic</i>`))
	want := `intro <b>bold</b> and <i>italic</i>`
	if got != want {
		t.Errorf("RenderHTML():\n got: %q\nwant: %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// BodyHTML tests
// ---------------------------------------------------------------------------

func TestBodyHTML_BasicBody(t *testing.T) {
	doc := Parse(`<html><head><title>Test</title><style>h1{color:red}</style></head><body><h1>Hello</h1><p>World</p></body></html>`)
	got := BodyHTML(doc, "")
	if strings.Contains(got, "<head>") || strings.Contains(got, "<title>") || strings.Contains(got, "<style>") {
		t.Errorf("head/title/style should be stripped, got: %q", got)
	}
	if !strings.Contains(got, "<h1>Hello</h1>") {
		t.Errorf("body content should be preserved, got: %q", got)
	}
	if !strings.Contains(got, "<p>World</p>") {
		t.Errorf("body content should be preserved, got: %q", got)
	}
}

func TestBodyHTML_StripsScriptAndStyle(t *testing.T) {
	doc := Parse(`<html><body><p>Keep</p><script>alert("x")</script><style>.hide{display:none}</style><p>Also keep</p></body></html>`)
	got := BodyHTML(doc, "")
	if strings.Contains(got, "<script>") || strings.Contains(got, "alert") {
		t.Errorf("script should be stripped, got: %q", got)
	}
	if strings.Contains(got, "<style>") || strings.Contains(got, "display") {
		t.Errorf("style should be stripped, got: %q", got)
	}
	if !strings.Contains(got, "<p>Keep</p>") || !strings.Contains(got, "<p>Also keep</p>") {
		t.Errorf("non-script content should be kept, got: %q", got)
	}
}

func TestBodyHTML_StripsEventAttributes(t *testing.T) {
	doc := Parse(`<html><body><div onclick="evil()" onmouseover="track()"><p onload="init()">Text</p></div></body></html>`)
	got := BodyHTML(doc, "")
	if strings.Contains(got, "onclick") || strings.Contains(got, "onmouseover") || strings.Contains(got, "onload") {
		t.Errorf("event attributes should be stripped, got: %q", got)
	}
	if !strings.Contains(got, "<p>Text</p>") {
		t.Errorf("text content should be preserved, got: %q", got)
	}
}

func TestBodyHTML_FragmentWithoutBody(t *testing.T) {
	// Chapter files that are bare fragments still display.
	doc := Parse(`<p>One</p><p>Two</p>`)
	got := BodyHTML(doc, "")
	want := `<p>One</p><p>Two</p>`
	if got != want {
		t.Errorf("BodyHTML():\n got: %q\nwant: %q", got, want)
	}
}

func TestBodyHTML_NoBodyRendersDocument(t *testing.T) {
	doc := Parse(`<html><head><title>No Body</title></head></html>`)
	got := BodyHTML(doc, "")
	if !strings.Contains(got, "<title>No Body</title>") {
		t.Errorf("document without body should render in full, got: %q", got)
	}
}

func TestBodyHTML_PreservesAttributes(t *testing.T) {
	doc := Parse(`<html><body><a href="link.html" class="nav">Click</a></body></html>`)
	got := BodyHTML(doc, "")
	if !strings.Contains(got, `href="link.html"`) {
		t.Errorf("non-event attributes should be preserved, got: %q", got)
	}
	if !strings.Contains(got, `class="nav"`) {
		t.Errorf("class attribute should be preserved, got: %q", got)
	}
}

func TestBodyHTML_StripsDangerousURIProtocols(t *testing.T) {
	doc := Parse(`<html><body>
		<a href="javascript:alert(1)">Bad JS</a>
		<a href="vbscript:msgbox(1)">Bad VB</a>
		<img src="data:text/html;base64,PHNjcmlwdD5hbGVydCgxKTwvc2NyaXB0Pg=="/>
	</body></html>`)

	got := BodyHTML(doc, "")

	if strings.Contains(strings.ToLower(got), "javascript:") {
		t.Errorf("javascript: URI should be stripped, got: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "vbscript:") {
		t.Errorf("vbscript: URI should be stripped, got: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "data:text/html") {
		t.Errorf("data:text/html URI should be stripped, got: %q", got)
	}
}

func TestBodyHTML_EncodedSchemeCannotHide(t *testing.T) {
	// The scheme check runs on the decoded value, so an entity-encoded
	// "javascript:" is still caught.
	doc := Parse(`<html><body><a href="javascript&#58;alert(1)">x</a></body></html>`)
	got := BodyHTML(doc, "")
	if strings.Contains(strings.ToLower(got), "javascript") {
		t.Errorf("encoded javascript: URI should be stripped, got: %q", got)
	}
}

func TestBodyHTML_AllowsSafeURIProtocols(t *testing.T) {
	doc := Parse(`<html><body>
		<a href="https://example.com">HTTPS</a>
		<a href="mailto:test@example.com">Mail</a>
		<a href="#section">Fragment</a>
		<a href="chapter1.xhtml">Relative</a>
		<img src="data:image/png;base64,AAA"/>
	</body></html>`)

	got := BodyHTML(doc, "")

	checks := []string{
		`href="https://example.com"`,
		`href="mailto:test@example.com"`,
		`href="#section"`,
		`href="chapter1.xhtml"`,
		`src="data:image/png;base64,AAA"`,
	}
	for _, want := range checks {
		if !strings.Contains(got, want) {
			t.Errorf("expected safe URI to be preserved (%s), got: %q", want, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Image path rewriting
// ---------------------------------------------------------------------------

func TestBodyHTML_RewritesImgSrc(t *testing.T) {
	doc := Parse(`<html><body><img src="../images/cover.jpg"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/text/chapter1.xhtml")
	if !strings.Contains(got, `src="OEBPS/images/cover.jpg"`) {
		t.Errorf("img src should be rewritten to archive path, got: %q", got)
	}
}

func TestBodyHTML_RewritesSameDirectory(t *testing.T) {
	doc := Parse(`<html><body><img src="image.png"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/chapter1.xhtml")
	if !strings.Contains(got, `src="OEBPS/image.png"`) {
		t.Errorf("img src should resolve to same directory, got: %q", got)
	}
}

func TestBodyHTML_AbsoluteURLsUnchanged(t *testing.T) {
	doc := Parse(`<html><body><img src="https://example.com/img.png"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/chapter1.xhtml")
	if !strings.Contains(got, `src="https://example.com/img.png"`) {
		t.Errorf("absolute URLs should not be rewritten, got: %q", got)
	}
}

func TestBodyHTML_DataURIsUnchanged(t *testing.T) {
	doc := Parse(`<html><body><img src="data:image/png;base64,ABC"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/chapter1.xhtml")
	if !strings.Contains(got, `src="data:image/png;base64,ABC"`) {
		t.Errorf("data URIs should not be rewritten, got: %q", got)
	}
}

func TestBodyHTML_RewritesSVGImage(t *testing.T) {
	doc := Parse(`<html><body><svg><image xlink:href="../images/pic.svg"/></svg></body></html>`)
	got := BodyHTML(doc, "OEBPS/text/page.xhtml")
	if !strings.Contains(got, "OEBPS/images/pic.svg") {
		t.Errorf("SVG image xlink:href should be rewritten, got: %q", got)
	}
}

func TestBodyHTML_RewritesMultipleImages(t *testing.T) {
	doc := Parse(`<html><body><img src="a.jpg"/><img src="../b.png"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/text/ch.xhtml")
	if !strings.Contains(got, `src="OEBPS/text/a.jpg"`) {
		t.Errorf("first image should be resolved, got: %q", got)
	}
	if !strings.Contains(got, `src="OEBPS/b.png"`) {
		t.Errorf("second image should be resolved, got: %q", got)
	}
}

func TestBodyHTML_EmptySrcUnchanged(t *testing.T) {
	doc := Parse(`<html><body><img src=""/></body></html>`)
	got := BodyHTML(doc, "OEBPS/chapter1.xhtml")
	if !strings.Contains(got, `src=""`) {
		t.Errorf("empty src should remain empty, got: %q", got)
	}
}

func TestBodyHTML_EscapingPathKeptVerbatim(t *testing.T) {
	// A reference that climbs out of the archive cannot be resolved; the
	// original value stays rather than pointing at a bogus location.
	doc := Parse(`<html><body><img src="../../../etc/x.png"/></body></html>`)
	got := BodyHTML(doc, "OEBPS/ch.xhtml")
	if !strings.Contains(got, `src="../../../etc/x.png"`) {
		t.Errorf("unresolvable src should stay verbatim, got: %q", got)
	}
}
