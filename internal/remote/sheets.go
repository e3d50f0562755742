package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/models"
)

// SheetsConfig holds connection configuration for a spreadsheet
// backend. Endpoint defaults to the public Sheets API base URL and is
// overridable for tests.
type SheetsConfig struct {
	Endpoint      string
	SpreadsheetID string
	APIKey        string
	Sheet         string // sheet tab name, defaults to "Records"
}

// SheetsStore appends records as spreadsheet rows. Each row holds
// [id, owner, name, amount, occurred_at, updated_at, payload].
type SheetsStore struct {
	config     *SheetsConfig
	httpClient *http.Client
}

// NewSheetsStore creates a SheetsStore.
func NewSheetsStore(config *SheetsConfig) *SheetsStore {
	if config.Endpoint == "" {
		config.Endpoint = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if config.Sheet == "" {
		config.Sheet = "Records"
	}
	return &SheetsStore{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type valueRange struct {
	Values [][]interface{} `json:"values"`
}

// Create appends the record as a new row. The spreadsheet cannot mint
// ids, so the client assigns one before appending.
func (c *SheetsStore) Create(ctx context.Context, rec *Record) (models.ID, error) {
	id := models.ID(uuid.NewString())

	row := valueRange{Values: [][]interface{}{{
		id.String(),
		rec.Owner,
		rec.Name,
		rec.Amount,
		strconv.FormatInt(rec.OccurredAt, 10),
		strconv.FormatInt(rec.UpdatedAt, 10),
		string(rec.Payload),
	}}}
	body, err := json.Marshal(row)
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "failed to encode row", err)
	}

	appendURL := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=RAW&key=%s",
		c.config.Endpoint, c.config.SpreadsheetID, url.PathEscape(c.config.Sheet), url.QueryEscape(c.config.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, appendURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrNetwork, "append request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}
	return id, nil
}

// List reads every row and filters client-side. The spreadsheet has no
// query language, so range filtering happens here.
func (c *SheetsStore) List(ctx context.Context, owner string, from, to int64) ([]*Record, error) {
	getURL := fmt.Sprintf("%s/%s/values/%s?key=%s",
		c.config.Endpoint, c.config.SpreadsheetID, url.PathEscape(c.config.Sheet), url.QueryEscape(c.config.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "values request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var vr valueRange
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "failed to parse values response", err)
	}

	var records []*Record
	for _, row := range vr.Values {
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		if owner != "" && rec.Owner != owner {
			continue
		}
		if from > 0 && rec.OccurredAt < from {
			continue
		}
		if to > 0 && rec.OccurredAt > to {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete is not supported by the spreadsheet backend; rows are append
// only. Callers fall back to local-only deletion.
func (c *SheetsStore) Delete(ctx context.Context, id models.ID) (bool, error) {
	return false, errors.New(errors.ErrValidation, "sheets backend does not support delete")
}

func parseRow(row []interface{}) (*Record, bool) {
	if len(row) < 7 {
		return nil, false
	}
	cells := make([]string, 7)
	for i := 0; i < 7; i++ {
		s, ok := row[i].(string)
		if !ok {
			// Numeric cells come back as float64.
			if f, isNum := row[i].(float64); isNum {
				s = strconv.FormatFloat(f, 'f', -1, 64)
			} else {
				return nil, false
			}
		}
		cells[i] = s
	}

	amount, err := strconv.ParseFloat(cells[3], 64)
	if err != nil {
		return nil, false
	}
	occurredAt, err := strconv.ParseInt(cells[4], 10, 64)
	if err != nil {
		return nil, false
	}
	updatedAt, _ := strconv.ParseInt(cells[5], 10, 64)

	return &Record{
		ID:         models.ID(cells[0]),
		Owner:      cells[1],
		Name:       cells[2],
		Amount:     amount,
		OccurredAt: occurredAt,
		UpdatedAt:  updatedAt,
		Payload:    json.RawMessage(cells[6]),
	}, true
}
