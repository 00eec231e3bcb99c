package strapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileID is a Strapi upload id.  Strapi emits numbers, but documentId-style strings show up too, so
// we keep whatever we got as text.
type FileID string

func (id *FileID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("strapi: bad file id %s: %w", b, err)
		}
		*id = FileID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("strapi: bad file id %s: %w", b, err)
	}
	*id = FileID(n.String())
	return nil
}

// File is an entry of the upload plugin, see
// https://docs.strapi.io/dev-docs/plugins/upload#endpoints.  Only the fields we care about are
// decoded; UpdatedAt is compared verbatim to decide whether a cached download is still good.
type File struct {
	ID              FileID  `json:"id"`
	Name            string  `json:"name,omitempty"`
	AlternativeText string  `json:"alternativeText,omitempty"`
	Hash            string  `json:"hash,omitempty"`
	Ext             string  `json:"ext,omitempty"`
	Mime            string  `json:"mime,omitempty"`
	Size            float64 `json:"size,omitempty"`
	URL             string  `json:"url"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt"`
}

// FileFromValue decodes a media value found inside an entity (a JSON object) into a File.  It
// returns false for anything that doesn't look like an uploaded file.
func FileFromValue(v any) (File, bool) {
	if v == nil {
		return File{}, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return File{}, false
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, false
	}
	if f.ID == "" || f.URL == "" {
		return File{}, false
	}
	return f, true
}

// AttributeKind says how the media walk treats an attribute.
type AttributeKind int8

const (
	KindOpaque AttributeKind = iota
	KindRichText
	KindMedia
	KindComponent
	KindDynamicZone
	KindRelation
)

func (k AttributeKind) String() string {
	switch k {
	case KindRichText:
		return "richtext"
	case KindMedia:
		return "media"
	case KindComponent:
		return "component"
	case KindDynamicZone:
		return "dynamiczone"
	case KindRelation:
		return "relation"
	default:
		return "opaque"
	}
}

// Attribute is one field of a content type or component schema, as returned by the
// content-type-builder plugin.  Which of the remaining fields is meaningful depends on Type.
type Attribute struct {
	Type string `json:"type"`

	// component
	Component  string `json:"component,omitempty"`
	Repeatable bool   `json:"repeatable,omitempty"`

	// dynamiczone
	Components []string `json:"components,omitempty"`

	// relation
	Relation string `json:"relation,omitempty"`
	Target   string `json:"target,omitempty"`

	// media
	Multiple     bool     `json:"multiple,omitempty"`
	AllowedTypes []string `json:"allowedTypes,omitempty"`
}

func (a Attribute) Kind() AttributeKind {
	switch a.Type {
	case "richtext":
		return KindRichText
	case "media":
		return KindMedia
	case "component":
		return KindComponent
	case "dynamiczone":
		return KindDynamicZone
	case "relation":
		return KindRelation
	default:
		return KindOpaque
	}
}

// ContentTypeSchema describes a content type (api::article.article) or a component
// (shared.media).  See https://docs.strapi.io/dev-docs/backend-customization/models.
type ContentTypeSchema struct {
	UID      string `json:"uid"`
	Category string `json:"category,omitempty"`

	Schema struct {
		Kind        string `json:"kind,omitempty"` // collectionType, singleType; empty for components
		DisplayName string `json:"displayName,omitempty"`

		Info struct {
			DisplayName  string `json:"displayName,omitempty"`
			SingularName string `json:"singularName,omitempty"`
			PluralName   string `json:"pluralName,omitempty"`
		} `json:"info,omitempty"`

		Attributes map[string]Attribute `json:"attributes"`
	} `json:"schema"`
}

// Attributes is shorthand for Schema.Attributes.
func (s ContentTypeSchema) Attributes() map[string]Attribute {
	return s.Schema.Attributes
}

// SchemaSet is a read-only lookup of schemas by uid.  Content types and components share a
// namespace: api::x.y vs category.name.
type SchemaSet map[string]ContentTypeSchema

func NewSchemaSet(lists ...[]ContentTypeSchema) SchemaSet {
	set := SchemaSet{}
	for _, list := range lists {
		for _, s := range list {
			set[s.UID] = s
		}
	}
	return set
}

func (s SchemaSet) Lookup(uid string) (ContentTypeSchema, bool) {
	schema, ok := s[uid]
	return schema, ok
}
