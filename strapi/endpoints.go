package strapi

import (
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// getFilesEndpoint returns the upload plugin endpoint used to look files up by URL.
func (a *API) getFilesEndpoint(opts GetFilesQuery) (*url.URL, error) {
	if opts.Filters.URL == "" {
		return nil, fmt.Errorf("strapi: please provide a URL to filter files by")
	}

	ep, err := a.resolveEndpoint("/api/upload/strapi-files")
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getContentTypesEndpoint returns the content-type-builder listing of content types:
// https://docs.strapi.io/dev-docs/plugins/content-type-builder
func (a *API) getContentTypesEndpoint(opts GetSchemasQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("/api/content-type-builder/content-types")
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getComponentsEndpoint returns the content-type-builder listing of components.
func (a *API) getComponentsEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("/api/content-type-builder/components")
}

// Do a bit of error checking on endpoint format, and return it relative to the base URI.
func (a *API) resolveEndpoint(endpoint string) (*url.URL, error) {
	baseUri := a.BaseURI

	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("strapi: failed to parse endpoint ref: %w", err)
	}

	return baseUri.ResolveReference(ref), nil
}
