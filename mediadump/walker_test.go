package mediadump

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/strapi-media-dump/markdown"
	"github.com/toothbrush/strapi-media-dump/strapi"
)

func testSchemas() strapi.SchemaSet {
	schema := func(uid string, attrs map[string]strapi.Attribute) strapi.ContentTypeSchema {
		s := strapi.ContentTypeSchema{UID: uid}
		s.Schema.Attributes = attrs
		return s
	}

	return strapi.NewSchemaSet([]strapi.ContentTypeSchema{
		schema("api::page.page", map[string]strapi.Attribute{
			"title":    {Type: "string"},
			"body":     {Type: "richtext"},
			"cover":    {Type: "media"},
			"gallery":  {Type: "media", Multiple: true},
			"blocks":   {Type: "dynamiczone", Components: []string{"shared.image-block", "shared.text-block"}},
			"seo":      {Type: "component", Component: "shared.seo"},
			"sections": {Type: "component", Component: "shared.section", Repeatable: true},
			"author":   {Type: "relation", Relation: "manyToOne", Target: "api::author.author"},
			"related":  {Type: "relation", Relation: "oneToMany", Target: "api::page.page"},
		}),
		schema("api::author.author", map[string]strapi.Attribute{
			"name":   {Type: "string"},
			"avatar": {Type: "media"},
		}),
		schema("shared.image-block", map[string]strapi.Attribute{
			"image": {Type: "media"},
		}),
		schema("shared.text-block", map[string]strapi.Attribute{
			"text":    {Type: "richtext"},
			"picture": {Type: "media"},
		}),
		schema("shared.seo", map[string]strapi.Attribute{
			"shareImage": {Type: "media"},
		}),
		schema("shared.section", map[string]strapi.Attribute{
			"picture": {Type: "media"},
		}),
	})
}

func mediaFile(id string, url string) map[string]any {
	return map[string]any{"id": id, "url": url, "updatedAt": "t1", "name": id}
}

func newTestWalker() (*Walker, *fakeFetcher, *fakeFiles) {
	resolver, fetcher, _ := newTestResolver()
	files := &fakeFiles{files: map[string]strapi.File{
		"/uploads/inline.png":           {ID: "100", URL: "/uploads/inline.png", UpdatedAt: "t1"},
		"/uploads/inline-broken.png":    {ID: "101", URL: "/uploads/inline-broken.png", UpdatedAt: "t1"},
		"https://cdn.example/photo.jpg": {ID: "102", URL: "https://cdn.example/photo.jpg", UpdatedAt: "t1"},
	}}

	w := &Walker{
		APIURL:    "https://cms.example",
		Schemas:   testSchemas(),
		Files:     files,
		Resolver:  resolver,
		Extractor: markdown.NewExtractor(),
	}
	return w, fetcher, files
}

func TestWalkMediaSingle(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"title": "Home",
		"cover": mediaFile("1", "/uploads/cover.png"),
	}, "api::page.page")

	cover := out["cover"].(map[string]any)
	assert.Equal(t, NodeID("https://cms.example/uploads/cover.png"), cover[LocalFileField])
	assert.Equal(t, "Home", out["title"])
}

func TestWalkMediaMultipleWithFailure(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"gallery": []any{
			mediaFile("1", "/uploads/ok.png"),
			mediaFile("2", "/uploads/broken.png"),
		},
	}, "api::page.page")

	gallery := out["gallery"].([]any)
	require.Len(t, gallery, 2)

	resolved := 0
	for _, g := range gallery {
		if _, ok := g.(map[string]any)[LocalFileField]; ok {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
	assert.Equal(t, NodeID("https://cms.example/uploads/ok.png"), gallery[0].(map[string]any)[LocalFileField])
	assert.NotContains(t, gallery[1].(map[string]any), LocalFileField)
}

func TestWalkMediaAllFailedLeavesAttributeUnset(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"cover": mediaFile("2", "/uploads/broken.png"),
	}, "api::page.page")

	assert.Equal(t, mediaFile("2", "/uploads/broken.png"), out["cover"])
}

func TestWalkRichText(t *testing.T) {
	w, fetcher, files := newTestWalker()

	body := "![first](/uploads/inline.png)\n\n" +
		"![gone](/uploads/inline-broken.png)\n\n" +
		"![unknown](/uploads/not-in-strapi.png)\n\n" +
		"![relative](uploads/nope.png)\n\n" +
		"![remote](https://cdn.example/photo.jpg)\n"

	out := w.Walk(context.Background(), Entity{"body": body}, "api::page.page")

	rich := out["body"].(map[string]any)
	assert.Equal(t, body, rich["data"])

	medias := rich["medias"].([]any)
	require.Len(t, medias, 2)

	first := medias[0].(MediaDescriptor)
	assert.Equal(t, "first", first.AlternativeText)
	assert.Equal(t, "/uploads/inline.png", first.Src)
	assert.Equal(t, "https://cms.example/uploads/inline.png", first.URL)
	assert.Equal(t, NodeID("https://cms.example/uploads/inline.png"), first.LocalFile)
	assert.Equal(t, strapi.FileID("100"), first.File.ID)

	second := medias[1].(MediaDescriptor)
	assert.Equal(t, "remote", second.AlternativeText)
	assert.Equal(t, "https://cdn.example/photo.jpg", second.Src)

	assert.ElementsMatch(t, []string{
		"/uploads/inline.png",
		"/uploads/inline-broken.png",
		"/uploads/not-in-strapi.png",
		"https://cdn.example/photo.jpg",
	}, files.queries)
	assert.ElementsMatch(t, []string{
		"https://cms.example/uploads/inline.png",
		"https://cms.example/uploads/inline-broken.png",
		"https://cdn.example/photo.jpg",
	}, fetcher.URLs())
}

func TestWalkRichTextLookupErrorIsContained(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"body":  "![a](/uploads/lookup-error.png) ![b](/uploads/inline.png)",
		"cover": mediaFile("1", "/uploads/cover.png"),
	}, "api::page.page")

	medias := out["body"].(map[string]any)["medias"].([]any)
	require.Len(t, medias, 1)
	assert.Equal(t, "b", medias[0].(MediaDescriptor).AlternativeText)
	assert.Contains(t, out["cover"].(map[string]any), LocalFileField)
}

func TestWalkRichTextEnvelope(t *testing.T) {
	w, _, _ := newTestWalker()

	existing := map[string]any{"alternativeText": "kept"}
	out := w.Walk(context.Background(), Entity{
		"body": map[string]any{"data": "![x](/uploads/inline.png)", "medias": []any{existing}},
	}, "api::page.page")

	medias := out["body"].(map[string]any)["medias"].([]any)
	require.Len(t, medias, 2)
	assert.Equal(t, existing, medias[0])
	assert.Equal(t, "x", medias[1].(MediaDescriptor).AlternativeText)
}

func TestWalkDynamicZoneUsesElementTypes(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"blocks": []any{
			map[string]any{"__component": "shared.image-block", "image": mediaFile("1", "/uploads/one.png")},
			map[string]any{"strapi_component": "shared.text-block", "text": "plain", "picture": mediaFile("2", "/uploads/two.png")},
			map[string]any{"__component": "shared.unknown", "picture": mediaFile("3", "/uploads/three.png")},
			map[string]any{"picture": mediaFile("4", "/uploads/four.png")},
		},
	}, "api::page.page")

	blocks := out["blocks"].([]any)
	require.Len(t, blocks, 4)

	first := blocks[0].(map[string]any)
	assert.Equal(t, NodeID("https://cms.example/uploads/one.png"), first["image"].(map[string]any)[LocalFileField])

	// a media field under element 2, of a different component type, still resolves.
	second := blocks[1].(map[string]any)
	assert.Equal(t, NodeID("https://cms.example/uploads/two.png"), second["picture"].(map[string]any)[LocalFileField])
	assert.Equal(t, map[string]any{"data": "plain", "medias": []any{}}, second["text"])

	// without a schema, elements pass through untouched.
	assert.NotContains(t, blocks[2].(map[string]any)["picture"], LocalFileField)
	assert.NotContains(t, blocks[3].(map[string]any)["picture"], LocalFileField)
}

func TestWalkComponents(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"seo": map[string]any{"shareImage": mediaFile("1", "/uploads/share.png")},
		"sections": []any{
			map[string]any{"picture": mediaFile("2", "/uploads/s1.png")},
			map[string]any{"picture": mediaFile("3", "/uploads/s2.png")},
		},
	}, "api::page.page")

	seo := out["seo"].(map[string]any)
	assert.Contains(t, seo["shareImage"], LocalFileField)

	sections := out["sections"].([]any)
	require.Len(t, sections, 2)
	for _, s := range sections {
		assert.Contains(t, s.(map[string]any)["picture"], LocalFileField)
	}
}

func TestWalkRelations(t *testing.T) {
	w, _, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"author": map[string]any{"name": "Sam", "avatar": mediaFile("1", "/uploads/sam.png")},
		"related": []any{
			map[string]any{"title": "Other", "cover": mediaFile("2", "/uploads/other.png")},
		},
	}, "api::page.page")

	author := out["author"].(map[string]any)
	assert.Equal(t, "Sam", author["name"])
	assert.Contains(t, author["avatar"], LocalFileField)

	related := out["related"].([]any)
	require.Len(t, related, 1)
	assert.Contains(t, related[0].(map[string]any)["cover"], LocalFileField)
}

func TestWalkLeavesInputAlone(t *testing.T) {
	w, _, _ := newTestWalker()

	in := Entity{
		"title":   "Home",
		"body":    "![x](/uploads/inline.png)",
		"cover":   mediaFile("1", "/uploads/cover.png"),
		"gallery": []any{mediaFile("2", "/uploads/g.png")},
		"seo":     map[string]any{"shareImage": mediaFile("3", "/uploads/share.png")},
		"extra":   map[string]any{"nested": []any{"a", "b"}},
	}
	before, err := json.Marshal(in)
	require.NoError(t, err)

	out := w.Walk(context.Background(), in, "api::page.page")

	after, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	// nothing in the output aliases the input.
	out["extra"].(map[string]any)["nested"].([]any)[0] = "changed"
	assert.Equal(t, "a", in["extra"].(map[string]any)["nested"].([]any)[0])
}

func TestWalkUnknownType(t *testing.T) {
	w, fetcher, _ := newTestWalker()

	in := Entity{"cover": mediaFile("1", "/uploads/cover.png")}
	out := w.Walk(context.Background(), in, "api::missing.missing")

	assert.Equal(t, in, out)
	assert.Zero(t, fetcher.calls.Load())
}

func TestWalkSkipsEmptyValues(t *testing.T) {
	w, fetcher, _ := newTestWalker()

	out := w.Walk(context.Background(), Entity{
		"cover":   nil,
		"body":    "",
		"seo":     nil,
		"gallery": []any{},
	}, "api::page.page")

	assert.Nil(t, out["cover"])
	assert.Equal(t, "", out["body"])
	assert.Equal(t, []any{}, out["gallery"])
	assert.Zero(t, fetcher.calls.Load())
}

func TestDownloadMediaFiles(t *testing.T) {
	w, fetcher, _ := newTestWalker()
	w.Workers = 2
	var done atomic.Int64
	w.OnEntity = func() { done.Add(1) }

	entities := []Entity{
		{"title": "a", "cover": mediaFile("1", "/uploads/shared.png")},
		{"title": "b", "cover": mediaFile("2", "/uploads/broken.png")},
		{"title": "c", "cover": mediaFile("1", "/uploads/shared.png"), "gallery": []any{mediaFile("3", "/uploads/c.png")}},
	}

	out := w.DownloadMediaFiles(context.Background(), entities, "api::page.page")
	require.Len(t, out, 3)
	assert.Equal(t, int64(3), done.Load())

	for i, e := range out {
		assert.Equal(t, entities[i]["title"], e["title"], "order is kept")
	}

	assert.Contains(t, out[0]["cover"], LocalFileField)
	assert.NotContains(t, out[1]["cover"], LocalFileField)
	assert.Contains(t, out[2]["cover"], LocalFileField)
	assert.Contains(t, out[2]["gallery"].([]any)[0], LocalFileField)

	// file 1 is shared by two entities but downloaded once.
	count := 0
	for _, u := range fetcher.URLs() {
		if u == "https://cms.example/uploads/shared.png" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
