package strapi

// SchemaListResponse is what the content-type-builder plugin returns for both content types and
// components.
type SchemaListResponse struct {
	Data []ContentTypeSchema `json:"data"`
}
