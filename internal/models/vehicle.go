package models

import "strconv"

// AppraisalStatus is the terminal state of one vehicle's appraisal.
type AppraisalStatus string

const (
	StatusPending        AppraisalStatus = "PENDING"
	StatusProfit         AppraisalStatus = "PROFIT"
	StatusLoss           AppraisalStatus = "LOSS"
	StatusSuccess        AppraisalStatus = "SUCCESS"
	StatusNoData         AppraisalStatus = "NO DATA"
	StatusSessionExpired AppraisalStatus = "SESSION_EXPIRED"
	StatusError          AppraisalStatus = "ERROR"
)

// VehicleRequest is the immutable input to one appraisal. Odometer stays a
// string because the inventory store mixes numeric and text kilometre values.
type VehicleRequest struct {
	VIN        string  `json:"vin" binding:"required"`
	Odometer   string  `json:"odometer"`
	Trim       string  `json:"trim,omitempty"`
	ListPrice  float64 `json:"list_price"`
	ListingURL string  `json:"listing_url,omitempty"`
	CarfaxURL  string  `json:"carfax_url,omitempty"`
	Make       string  `json:"make,omitempty"`
	Model      string  `json:"model,omitempty"`
}

// AppraisalResult is the outcome of appraising one vehicle. ExportValueCAD is
// a string-encoded integer ("" when no valuation was obtained); Profit is nil
// unless both an export value and a non-zero list price were available.
type AppraisalResult struct {
	VIN            string          `json:"vin"`
	Odometer       string          `json:"odometer"`
	Trim           string          `json:"trim,omitempty"`
	SignalTrim     string          `json:"signal_trim,omitempty"`
	ListPrice      float64         `json:"list_price"`
	ListingURL     string          `json:"listing_url,omitempty"`
	CarfaxURL      string          `json:"carfax_url,omitempty"`
	Make           string          `json:"make,omitempty"`
	Model          string          `json:"model,omitempty"`
	ExportValueCAD string          `json:"export_value_cad,omitempty"`
	Profit         *float64        `json:"profit,omitempty"`
	Status         AppraisalStatus `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// HasExportValue reports whether a valuation was extracted for this vehicle.
func (r *AppraisalResult) HasExportValue() bool {
	return r.ExportValueCAD != ""
}

// ExportValue parses the string-encoded export value. The second return is
// false when no value was extracted or the stored text is not numeric.
func (r *AppraisalResult) ExportValue() (float64, bool) {
	if r.ExportValueCAD == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(r.ExportValueCAD, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CapturedResponse is one network response observed during a vehicle lookup.
// Instances live only for the duration of that lookup.
type CapturedResponse struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}
