package mediadump

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/toothbrush/strapi-media-dump/markdown"
	"github.com/toothbrush/strapi-media-dump/strapi"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// Entity is one Strapi entry (or component instance) as decoded from JSON.
type Entity = map[string]any

// LocalFileField is set on media file objects once they're downloaded.
const LocalFileField = "localFile"

// SchemaProvider looks up content type and component schemas by uid.
type SchemaProvider interface {
	Lookup(uid string) (strapi.ContentTypeSchema, bool)
}

// FileLookup finds the upload entry behind a URL found in rich text.
type FileLookup interface {
	GetFileByURL(ctx context.Context, fileURL string) (*strapi.File, error)
}

// MediaResolver turns a Strapi file into a local node id.
type MediaResolver interface {
	Resolve(ctx context.Context, file strapi.File) (string, bool)
}

// MediaDescriptor is appended to a rich-text field for each embedded image that was downloaded.
type MediaDescriptor struct {
	AlternativeText string      `json:"alternativeText"`
	URL             string      `json:"url"`
	Src             string      `json:"src"`
	LocalFile       string      `json:"localFile"`
	File            strapi.File `json:"file"`
}

// Walker finds media in entities by following their schemas, and returns copies of the entities
// with local file ids attached.  Inputs are never modified.
type Walker struct {
	APIURL    string
	Schemas   SchemaProvider
	Files     FileLookup
	Resolver  MediaResolver
	Extractor *markdown.Extractor

	// Workers bounds how many entities of a batch are walked at once; <= 0 means no bound.
	Workers int
	// OnEntity, if set, is called whenever an entity of a batch is done.
	OnEntity func()

	Logger zerolog.Logger
}

// DownloadMediaFiles walks every entity of a batch of type uid.  The result has the same order as
// the input.
func (w *Walker) DownloadMediaFiles(ctx context.Context, entities []Entity, uid string) []Entity {
	out := make([]Entity, len(entities))

	var grp errgroup.Group
	if w.Workers > 0 {
		grp.SetLimit(w.Workers)
	}

	for i, entity := range entities {
		i, entity := i, entity
		grp.Go(func() error {
			out[i] = w.Walk(ctx, entity, uid)
			if w.OnEntity != nil {
				w.OnEntity()
			}
			return nil
		})
	}

	// nothing in a walk returns an error; failures are logged per file.
	_ = grp.Wait()

	return out
}

// Walk returns a copy of entity, of type uid, with its media resolved.  An unknown uid leaves the
// entity as it is.
func (w *Walker) Walk(ctx context.Context, entity Entity, uid string) Entity {
	schema, ok := w.Schemas.Lookup(uid)
	if !ok {
		w.Logger.Warn().Str("uid", uid).Msg("no schema, leaving entity as is")
		return cloneMap(entity)
	}

	names := maps.Keys(entity)
	sort.Strings(names)
	results := make([]any, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		value := entity[name]
		attr, ok := schema.Attributes()[name]
		if !ok || isEmpty(value) || attr.Kind() == strapi.KindOpaque {
			results[i] = cloneValue(value)
			continue
		}

		wg.Add(1)
		go func(i int, name string, attr strapi.Attribute, value any) {
			defer wg.Done()
			results[i] = w.walkAttribute(ctx, uid, name, attr, value)
		}(i, name, attr, value)
	}
	wg.Wait()

	out := make(Entity, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func (w *Walker) walkAttribute(ctx context.Context, uid string, name string, attr strapi.Attribute, value any) any {
	switch attr.Kind() {
	case strapi.KindRichText:
		return w.walkRichText(ctx, value)

	case strapi.KindDynamicZone:
		list, ok := value.([]any)
		if !ok {
			return cloneValue(value)
		}
		out := make([]any, len(list))
		for i, element := range list {
			m, ok := asMap(element)
			if !ok {
				out[i] = cloneValue(element)
				continue
			}
			componentUID := dynamicZoneComponent(m)
			if componentUID == "" {
				w.Logger.Warn().Str("uid", uid).Str("attribute", name).Int("index", i).Msg("dynamic zone element without component type")
				out[i] = cloneMap(m)
				continue
			}
			out[i] = w.Walk(ctx, m, componentUID)
		}
		return out

	case strapi.KindComponent:
		if attr.Repeatable {
			return w.walkMany(ctx, value, attr.Component)
		}
		return w.walkOne(ctx, value, attr.Component)

	case strapi.KindRelation:
		if _, ok := value.([]any); ok {
			return w.walkMany(ctx, value, attr.Target)
		}
		return w.walkOne(ctx, value, attr.Target)

	case strapi.KindMedia:
		return w.walkMedia(ctx, attr.Multiple, value)
	}

	return cloneValue(value)
}

func (w *Walker) walkOne(ctx context.Context, value any, uid string) any {
	m, ok := asMap(value)
	if !ok {
		return cloneValue(value)
	}
	return w.Walk(ctx, m, uid)
}

func (w *Walker) walkMany(ctx context.Context, value any, uid string) any {
	list, ok := value.([]any)
	if !ok {
		return w.walkOne(ctx, value, uid)
	}
	out := make([]any, len(list))
	for i, element := range list {
		out[i] = w.walkOne(ctx, element, uid)
	}
	return out
}

// walkRichText turns a rich-text value into {"data": text, "medias": [...]}, with one
// MediaDescriptor per embedded image we managed to download, in document order.
func (w *Walker) walkRichText(ctx context.Context, value any) any {
	var text string
	out := map[string]any{}

	switch v := value.(type) {
	case string:
		text = v
	default:
		m, ok := asMap(value)
		if !ok {
			return cloneValue(value)
		}
		out = cloneMap(m)
		text, _ = m["data"].(string)
	}

	out["data"] = text
	medias, _ := out["medias"].([]any)
	if medias == nil {
		medias = []any{}
	}

	images := w.Extractor.Extract(text, w.APIURL)
	resolved := make([]*MediaDescriptor, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img markdown.Image) {
			defer wg.Done()
			resolved[i] = w.resolveImage(ctx, img)
		}(i, img)
	}
	wg.Wait()

	for _, d := range resolved {
		if d != nil {
			medias = append(medias, *d)
		}
	}
	out["medias"] = medias

	return out
}

func (w *Walker) resolveImage(ctx context.Context, img markdown.Image) *MediaDescriptor {
	lookupURL := strings.TrimPrefix(img.URL, w.APIURL)

	file, err := w.Files.GetFileByURL(ctx, lookupURL)
	if err != nil {
		w.Logger.Warn().Err(err).Str("url", lookupURL).Msg("couldn't look up embedded image")
		return nil
	}
	if file == nil {
		w.Logger.Debug().Str("url", lookupURL).Msg("embedded image isn't a Strapi upload")
		return nil
	}

	nodeID, ok := w.Resolver.Resolve(ctx, *file)
	if !ok {
		return nil
	}

	return &MediaDescriptor{
		AlternativeText: img.AlternativeText,
		URL:             img.URL,
		Src:             img.Src,
		LocalFile:       nodeID,
		File:            *file,
	}
}

// walkMedia resolves one file, or a list of them when multiple is set.  Downloaded files get a
// localFile field; files that failed are copied as they are.
func (w *Walker) walkMedia(ctx context.Context, multiple bool, value any) any {
	list, isList := value.([]any)
	if !multiple || !isList {
		m, ok := asMap(value)
		if !ok {
			return cloneValue(value)
		}
		out := cloneMap(m)
		if id, ok := w.resolveMediaValue(ctx, m); ok {
			out[LocalFileField] = id
		}
		return out
	}

	ids := make([]string, len(list))
	var wg sync.WaitGroup
	for i, element := range list {
		wg.Add(1)
		go func(i int, element any) {
			defer wg.Done()
			ids[i], _ = w.resolveMediaValue(ctx, element)
		}(i, element)
	}
	wg.Wait()

	out := make([]any, len(list))
	for i, element := range list {
		m, ok := asMap(element)
		if !ok || ids[i] == "" {
			out[i] = cloneValue(element)
			continue
		}
		c := cloneMap(m)
		c[LocalFileField] = ids[i]
		out[i] = c
	}
	return out
}

func (w *Walker) resolveMediaValue(ctx context.Context, value any) (string, bool) {
	file, ok := strapi.FileFromValue(value)
	if !ok {
		w.Logger.Debug().Msg("media value isn't a file, skipping")
		return "", false
	}
	return w.Resolver.Resolve(ctx, file)
}

// dynamicZoneComponent is the component uid of a dynamic zone element.  Strapi calls it
// __component; gatsby-style exports rename it strapi_component.
func dynamicZoneComponent(element map[string]any) string {
	if uid, ok := element["strapi_component"].(string); ok && uid != "" {
		return uid
	}
	uid, _ := element["__component"].(string)
	return uid
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the maps and slices of a decoded JSON value.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
