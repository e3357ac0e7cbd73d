package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"exportappraiser/internal/models"
	"exportappraiser/internal/validation"
)

// pageSize is the fixed inventory page size; a short page signals that the
// table is exhausted.
const pageSize = 1000

// resultsTable receives one row per qualifying appraisal.
const resultsTable = "appraisal_results"

// Client talks to the Supabase REST layer: paginated inventory reads and
// appraisal-result writes.
type Client struct {
	http    *resty.Client
	baseURL string
	table   string
}

// NewClient builds a store client for one Supabase project and inventory
// table.
func NewClient(baseURL, apiKey, table string) *Client {
	httpClient := resty.New().
		SetTimeout(60 * time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		table:   table,
	}
}

// inventoryRow mirrors one row of the inventory table. Numeric columns
// arrive as numbers or text depending on how rows were imported, so they
// are decoded leniently.
type inventoryRow struct {
	VIN         string          `json:"vin"`
	Kilometers  json.RawMessage `json:"kilometers"`
	Trim        string          `json:"trim"`
	Price       json.RawMessage `json:"price"`
	ListingLink string          `json:"listing_link"`
	CarfaxLink  string          `json:"carfax_link"`
	Make        string          `json:"make"`
	Model       string          `json:"model"`
}

// FetchInventory pages through the inventory table until a short page and
// returns the rows with exportable VINs as vehicle requests, along with the
// total number of rows seen.
func (c *Client) FetchInventory(ctx context.Context) ([]models.VehicleRequest, int, error) {
	var vehicles []models.VehicleRequest
	total := 0

	for offset := 0; ; offset += pageSize {
		var page []inventoryRow
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"select": "*",
				"limit":  strconv.Itoa(pageSize),
				"offset": strconv.Itoa(offset),
			}).
			SetResult(&page).
			Get(fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table))
		if err != nil {
			return nil, total, fmt.Errorf("inventory fetch at offset %d: %w", offset, err)
		}
		if resp.IsError() {
			return nil, total, fmt.Errorf("inventory fetch at offset %d: %s: %s", offset, resp.Status(), resp.String())
		}

		total += len(page)
		for _, row := range page {
			if v, ok := row.toVehicle(); ok {
				vehicles = append(vehicles, v)
			}
		}

		if len(page) < pageSize {
			break
		}
	}

	return vehicles, total, nil
}

// toVehicle coerces a raw row into a vehicle request, rejecting rows whose
// VIN is not export-eligible.
func (row inventoryRow) toVehicle() (models.VehicleRequest, bool) {
	vin := strings.TrimSpace(row.VIN)
	if !validation.IsValidVIN(vin) {
		return models.VehicleRequest{}, false
	}
	return models.VehicleRequest{
		VIN:        vin,
		Odometer:   validation.NormalizeOdometer(rawString(row.Kilometers)),
		Trim:       strings.TrimSpace(row.Trim),
		ListPrice:  validation.ParsePrice(rawString(row.Price)),
		ListingURL: strings.TrimSpace(row.ListingLink),
		CarfaxURL:  strings.TrimSpace(row.CarfaxLink),
		Make:       strings.TrimSpace(row.Make),
		Model:      strings.TrimSpace(row.Model),
	}, true
}

// rawString renders a JSON scalar as text: quoted strings unquote, numbers
// keep their literal form, null and absent become empty.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

// resultRecord is the appraisal_results row shape.
type resultRecord struct {
	VIN         string   `json:"vin"`
	Kilometers  string   `json:"kilometers"`
	ListingLink string   `json:"listing_link"`
	CarfaxLink  string   `json:"carfax_link"`
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	Trim        string   `json:"trim"`
	Price       float64  `json:"price"`
	ExportValue *float64 `json:"export_value"`
	Profit      *float64 `json:"profit"`
	Status      string   `json:"status"`
}

// SaveResult upserts one appraisal outcome keyed on VIN. A non-2xx response
// surfaces as an error; the caller logs it and moves on without retrying.
func (c *Client) SaveResult(ctx context.Context, r models.AppraisalResult) error {
	record := resultRecord{
		VIN:         r.VIN,
		Kilometers:  r.Odometer,
		ListingLink: r.ListingURL,
		CarfaxLink:  r.CarfaxURL,
		Make:        r.Make,
		Model:       r.Model,
		Trim:        r.SignalTrim,
		Price:       r.ListPrice,
		Profit:      r.Profit,
		Status:      string(r.Status),
	}
	if record.Trim == "" {
		record.Trim = r.Trim
	}
	if v, ok := r.ExportValue(); ok {
		record.ExportValue = &v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation,resolution=merge-duplicates").
		SetBody(record).
		Post(fmt.Sprintf("%s/rest/v1/%s", c.baseURL, resultsTable))
	if err != nil {
		return fmt.Errorf("save result for %s: %w", r.VIN, err)
	}
	if resp.IsError() {
		return fmt.Errorf("save result for %s: %s: %s", r.VIN, resp.Status(), resp.String())
	}
	return nil
}
