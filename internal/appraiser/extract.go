package appraiser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"exportappraiser/internal/models"
)

// Valuation is the outcome of scanning one vehicle's captured responses.
type Valuation struct {
	ExportValueCAD int
	Make           string
	Model          string
	Trim           string
}

// extractionState accumulates the scalar fields harvested while scanning a
// capture buffer. Zero means "not seen"; the valuation API never reports a
// zero wholesale value or exchange rate for a real vehicle.
type extractionState struct {
	exchangeRate       float64
	fxCushion          float64
	exportCost         float64
	targetGPU          float64
	usWholesale        float64
	customsDutyRate    float64
	weeklyDepreciation float64
	avgDaysInventory   float64

	vehicleMake  string
	vehicleModel string
	vehicleTrim  string
}

// ExtractExportValue waits for late asynchronous responses, then scans the
// session buffer for a valuation. The false return means "no data": the
// page never produced the wholesale-value and exchange-rate payloads.
func (s *Session) ExtractExportValue() (*Valuation, bool) {
	time.Sleep(extractSettle)
	return extractValuation(s.buffer.Snapshot())
}

// extractValuation scans captured responses once, in arrival order, and
// computes the export value. Scanning is pure: the same buffer always
// yields the same valuation.
func extractValuation(responses []models.CapturedResponse) (*Valuation, bool) {
	st := scanResponses(responses)
	return st.compute()
}

func scanResponses(responses []models.CapturedResponse) extractionState {
	var st extractionState

	for _, resp := range responses {
		body := strings.TrimSpace(resp.Body)
		// Skip JSONP wrappers and HTML documents before attempting a parse.
		if body == "" || strings.HasPrefix(body, "(function") || strings.HasPrefix(body, "<!") {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(body), &data); err != nil {
			continue
		}

		lowered := strings.ToLower(resp.URL)
		switch {
		case strings.Contains(lowered, "decode") && strings.Contains(lowered, "signal.vin"):
			st.applyDecode(data)
		case strings.Contains(lowered, "offer/initial"):
			st.applyOffer(data)
		case strings.Contains(lowered, "wholesale_value_trends"):
			st.applyWholesale(data)
		}
	}

	return st
}

// applyDecode pulls vehicle identity fields from a VIN-decode payload. Later
// decode responses overwrite earlier ones; the trim prefers the dealer's
// selected trim over the site's suggestion.
func (st *extractionState) applyDecode(data map[string]any) {
	if v, ok := data["make"].(string); ok {
		st.vehicleMake = v
	}
	if v, ok := data["model"].(string); ok {
		st.vehicleModel = v
	}
	if v, _ := data["selected_trim"].(string); v != "" {
		st.vehicleTrim = v
	} else if v, _ := data["suggested_trim"].(string); v != "" {
		st.vehicleTrim = v
	}
	if v, ok := toFloat(data["customs_duty_rate"]); ok {
		st.customsDutyRate = v
	}
}

// applyOffer pulls the financial parameters from the offer-initial payload.
// The exchange rate arrives either as an object carrying to_currency_rate
// or as a bare number, depending on the API version the SPA hit.
func (st *extractionState) applyOffer(data map[string]any) {
	switch rate := data["exchange_rate"].(type) {
	case map[string]any:
		if v, ok := toFloat(rate["to_currency_rate"]); ok {
			st.exchangeRate = v
		}
	default:
		if v, ok := toFloat(rate); ok {
			st.exchangeRate = v
		}
	}

	if v, ok := toFloat(data["current_weekly_depreciation_factor"]); ok {
		st.weeklyDepreciation = v
	}

	if setup, ok := data["offer_setup"].(map[string]any); ok {
		if v, ok := toFloat(setup["export_cost_amount"]); ok {
			st.exportCost = v
		}
		if v, ok := toFloat(setup["target_gpu_amount"]); ok {
			st.targetGPU = v
		}
		if v, ok := toFloat(setup["fx_cushion_amount"]); ok {
			st.fxCushion = v
		}
		if v, ok := toFloat(setup["average_days_in_inventory"]); ok {
			st.avgDaysInventory = v
		}
	}
}

// applyWholesale pulls the predicted US wholesale value, tolerating both the
// object-with-amount and bare-number forms.
func (st *extractionState) applyWholesale(data map[string]any) {
	trends, ok := data["wholesale_value_trends"].(map[string]any)
	if !ok {
		return
	}
	switch predicted := trends["predicted_wholesale_value"].(type) {
	case map[string]any:
		if v, ok := toFloat(predicted["amount"]); ok {
			st.usWholesale = v
		}
	default:
		if v, ok := toFloat(predicted); ok {
			st.usWholesale = v
		}
	}
}

// compute evaluates the export-value formula. Both the wholesale value and
// the exchange rate must have been found; the remaining inputs default to
// zero contributions when absent.
func (st *extractionState) compute() (*Valuation, bool) {
	if st.usWholesale == 0 || st.exchangeRate == 0 {
		return nil, false
	}

	effectiveFX := st.exchangeRate - st.fxCushion
	customsDuty := st.usWholesale * st.customsDutyRate
	weeks := st.avgDaysInventory / 7
	depreciationRate := st.weeklyDepreciation / 100
	depreciationAmount := st.usWholesale * depreciationRate * weeks
	netUSD := st.usWholesale - st.exportCost - st.targetGPU - customsDuty - depreciationAmount
	exportCAD := int(math.Round(netUSD * effectiveFX))

	return &Valuation{
		ExportValueCAD: exportCAD,
		Make:           st.vehicleMake,
		Model:          st.vehicleModel,
		Trim:           st.vehicleTrim,
	}, true
}

// toFloat coerces the number-or-numeric-string forms the valuation API mixes
// freely across payload versions.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
