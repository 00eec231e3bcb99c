package strapi

// GetFilesQuery defines the query parameters for the upload plugin's file listing.  Filters are
// encoded Strapi-style, i.e. filters[url]=/uploads/pic.png.
type GetFilesQuery struct {
	Filters FileFilters `url:"filters"`
}

type FileFilters struct {
	URL string `url:"url,omitempty"` // exact match on the file's stored URL
}

// GetSchemasQuery defines the query parameters for the content-type-builder listings.
type GetSchemasQuery struct {
	// Only list content types that are visible in the admin.  Components ignore this.
	Kind string `url:"kind,omitempty"` // collectionType, singleType
}
