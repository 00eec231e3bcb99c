// Package markdown finds the images embedded in Strapi rich-text fields.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var absoluteHTTP = regexp.MustCompile(`(?i)^http`)

// Image is one image reference found in a Markdown document.
type Image struct {
	// URL is what to fetch: Src itself, or Src prefixed with the API base for site-relative paths.
	URL string
	// Src is the destination exactly as written.
	Src             string
	AlternativeText string
}

// Extractor walks Markdown documents looking for images.  It holds no per-document state, so one
// value can be shared between goroutines.
type Extractor struct {
	parser     parser.Parser
	htmlImages bool
}

type Option func(*Extractor)

// WithHTMLImages makes the extractor also look inside raw HTML (as produced by WYSIWYG editors)
// for <img> tags.
func WithHTMLImages() Option {
	return func(e *Extractor) {
		e.htmlImages = true
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		parser: goldmark.New().Parser(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every image in document order.  Destinations that are neither site-relative
// ("/uploads/x.png") nor absolute http(s) URLs are dropped.  Repeated images are repeated in the
// output.
func (e *Extractor) Extract(markdown string, baseURL string) []Image {
	source := []byte(markdown)
	doc := e.parser.Parse(text.NewReader(source))

	images := []Image{}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Image:
			if img, ok := resolve(string(node.Destination), altText(node, source), baseURL); ok {
				images = append(images, img)
			}

		case *ast.HTMLBlock:
			if e.htmlImages {
				var buf bytes.Buffer
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					line := lines.At(i)
					buf.Write(line.Value(source))
				}
				if node.HasClosure() {
					buf.Write(node.ClosureLine.Value(source))
				}
				images = append(images, e.fromHTML(buf.String(), baseURL)...)
			}

		case *ast.RawHTML:
			if e.htmlImages {
				var buf bytes.Buffer
				for i := 0; i < node.Segments.Len(); i++ {
					seg := node.Segments.At(i)
					buf.Write(seg.Value(source))
				}
				images = append(images, e.fromHTML(buf.String(), baseURL)...)
			}
		}

		return ast.WalkContinue, nil
	})

	return images
}

// fromHTML converts an HTML fragment to Markdown and extracts the images of that.
func (e *Extractor) fromHTML(fragment string, baseURL string) []Image {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return nil
	}

	// An empty domain leaves src attributes untouched, which is what we want: resolve() decides.
	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(fragment)
	if err != nil {
		return nil
	}

	plain := &Extractor{parser: e.parser}
	return plain.Extract(converted, baseURL)
}

func resolve(destination string, alt string, baseURL string) (Image, bool) {
	switch {
	case strings.HasPrefix(destination, "/"):
		return Image{
			URL:             baseURL + destination,
			Src:             destination,
			AlternativeText: alt,
		}, true
	case absoluteHTTP.MatchString(destination):
		return Image{
			URL:             destination,
			Src:             destination,
			AlternativeText: alt,
		}, true
	}
	return Image{}, false
}

// altText is the plain text of the image description, with backslash escapes removed.
func altText(img *ast.Image, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(img, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch child := n.(type) {
		case *ast.Text:
			buf.Write(child.Segment.Value(source))
		case *ast.String:
			buf.Write(child.Value)
		}
		return ast.WalkContinue, nil
	})
	return string(util.UnescapePunctuations(buf.Bytes()))
}
