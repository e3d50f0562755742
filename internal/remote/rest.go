package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/models"
)

// RESTConfig holds connection configuration for a REST record backend.
type RESTConfig struct {
	Endpoint string // base URL, e.g. https://api.example.com
	APIKey   string
	Table    string // resource name, defaults to "records"
}

// RESTStore talks to a PostgREST-style HTTP backend.
type RESTStore struct {
	config     *RESTConfig
	httpClient *http.Client
}

// NewRESTStore creates a RESTStore.
func NewRESTStore(config *RESTConfig) *RESTStore {
	if config.Table == "" {
		config.Table = "records"
	}
	return &RESTStore{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Create uploads a record and returns the id assigned by the backend.
func (c *RESTStore) Create(ctx context.Context, rec *Record) (models.ID, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "failed to encode record", err)
	}

	req, err := c.createRequest(ctx, http.MethodPost, c.config.Table, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrNetwork, "create request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var created Record
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Wrap(errors.ErrNetwork, "failed to parse create response", err)
	}
	if created.ID == "" {
		return "", errors.New(errors.ErrValidation, "remote did not assign an id")
	}
	return created.ID, nil
}

// List fetches records for an owner within a time range. Zero bounds
// skip the corresponding filter.
func (c *RESTStore) List(ctx context.Context, owner string, from, to int64) ([]*Record, error) {
	query := url.Values{}
	if owner != "" {
		query.Set("owner", owner)
	}
	if from > 0 {
		query.Set("occurred_from", strconv.FormatInt(from, 10))
	}
	if to > 0 {
		query.Set("occurred_to", strconv.FormatInt(to, 10))
	}

	path := c.config.Table
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := c.createRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "list request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var records []*Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "failed to parse list response", err)
	}
	return records, nil
}

// Delete removes a record by id. Returns false when the backend does
// not know the id.
func (c *RESTStore) Delete(ctx context.Context, id models.ID) (bool, error) {
	req, err := c.createRequest(ctx, http.MethodDelete, c.config.Table+"/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(errors.ErrNetwork, "delete request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := classifyStatus(resp); err != nil {
		return false, err
	}
	return true, nil
}

// createRequest builds an authenticated request against the backend.
func (c *RESTStore) createRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+"/"+path, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("apikey", c.config.APIKey)
	}
	return req, nil
}

// classifyStatus maps HTTP status codes onto the sync error taxonomy.
// Auth and validation failures are terminal; everything else a remote
// can answer with is treated as transient.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrAuth, "remote rejected credentials")
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.New(errors.ErrValidation, fmt.Sprintf("remote rejected payload: %s", string(body)))
	default:
		return errors.New(errors.ErrNetwork, fmt.Sprintf("remote returned status %d", resp.StatusCode))
	}
}
