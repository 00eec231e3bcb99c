package strapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

var ErrUnauthorized = errors.New("strapi: authentication failed")

// GetFileByURL looks up the upload entry whose stored URL is fileURL (e.g. /uploads/pic.png).  A
// nil File and nil error means Strapi doesn't know the file.
func (api *API) GetFileByURL(ctx context.Context, fileURL string) (*File, error) {
	ep, err := api.getFilesEndpoint(GetFilesQuery{Filters: FileFilters{URL: fileURL}})
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't get files endpoint: %w", err)
	}

	body, err := api.request(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't perform request: %w", err)
	}

	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("strapi: couldn't parse json response: %w", err)
	}

	if len(files) == 0 {
		return nil, nil
	}

	return &files[0], nil
}

func (api *API) GetContentTypes(ctx context.Context, opts GetSchemasQuery) ([]ContentTypeSchema, error) {
	ep, err := api.getContentTypesEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't get content types endpoint: %w", err)
	}

	body, err := api.request(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't perform request: %w", err)
	}

	var list SchemaListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("strapi: couldn't parse json response: %w", err)
	}

	return list.Data, nil
}

func (api *API) GetComponents(ctx context.Context) ([]ContentTypeSchema, error) {
	ep, err := api.getComponentsEndpoint()
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't get components endpoint: %w", err)
	}

	body, err := api.request(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't perform request: %w", err)
	}

	var list SchemaListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("strapi: couldn't parse json response: %w", err)
	}

	return list.Data, nil
}

// GetSchemas fetches content types and components and merges them into one lookup.
func (api *API) GetSchemas(ctx context.Context) (SchemaSet, error) {
	contentTypes, err := api.GetContentTypes(ctx, GetSchemasQuery{})
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't list content types: %w", err)
	}

	components, err := api.GetComponents(ctx)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't list components: %w", err)
	}

	return NewSchemaSet(contentTypes, components), nil
}

// request performs an authenticated GET and returns the body of a successful response.
func (api *API) request(ctx context.Context, url *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json, */*")

	if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}

	response, err := api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strapi: couldn't perform http request: %w", err)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		response.Body.Close()
		return nil, fmt.Errorf("strapi: couldn't read http response body: %w", err)
	}

	if err := response.Body.Close(); err != nil {
		return nil, fmt.Errorf("strapi: couldn't close response body: %w", err)
	}

	switch response.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusPartialContent, http.StatusNoContent, http.StatusResetContent:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, response.Status)
	case http.StatusNotFound:
		return nil, fmt.Errorf("strapi: not found: %s: %s", response.Status, url.String())
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("strapi: service is not available: %s", response.Status)
	case http.StatusInternalServerError:
		return nil, fmt.Errorf("strapi: internal server error: %s", response.Status)
	}

	return nil, fmt.Errorf("strapi: unknown HTTP response status: %s: %s", response.Status, url.String())
}
