package strapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// LoadSchemas reads schema dumps from disk, for running without access to the content-type-builder
// endpoints.  Each file holds either the raw endpoint response ({"data": [...]}) or a bare array.
func LoadSchemas(paths ...string) (SchemaSet, error) {
	lists := [][]ContentTypeSchema{}

	for _, p := range paths {
		source, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("strapi: couldn't read schema file %s: %w", p, err)
		}

		list, err := parseSchemas(source)
		if err != nil {
			return nil, fmt.Errorf("strapi: couldn't parse schema file %s: %w", p, err)
		}
		lists = append(lists, list)
	}

	return NewSchemaSet(lists...), nil
}

func parseSchemas(source []byte) ([]ContentTypeSchema, error) {
	source = bytes.TrimSpace(source)
	if len(source) > 0 && source[0] == '[' {
		var list []ContentTypeSchema
		if err := json.Unmarshal(source, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var resp SchemaListResponse
	if err := json.Unmarshal(source, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
