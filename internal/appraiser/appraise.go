package appraiser

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"exportappraiser/internal/models"
	"exportappraiser/internal/validation"
)

// AppraiseVehicle runs the appraisal flow for one vehicle: clear the capture
// buffer, navigate to the parameterized appraisal page, let the SPA issue
// its API calls, scroll lazy content into view, then extract. Every vehicle
// yields exactly one result. Browser faults surface as ERROR and a login
// redirect as SESSION_EXPIRED; when the page never produced valuation
// payloads the status is NO DATA.
func (s *Session) AppraiseVehicle(v models.VehicleRequest) (result *models.AppraisalResult) {
	result = &models.AppraisalResult{
		VIN:        strings.TrimSpace(v.VIN),
		Odometer:   validation.NormalizeOdometer(v.Odometer),
		Trim:       v.Trim,
		ListPrice:  v.ListPrice,
		ListingURL: v.ListingURL,
		CarfaxURL:  v.CarfaxURL,
		Make:       v.Make,
		Model:      v.Model,
		Status:     models.StatusPending,
	}

	// The browser layer can panic on a dying page; contain the fault so the
	// partially-built result is still returned.
	defer func() {
		if r := recover(); r != nil {
			result.Status = models.StatusError
			result.Error = fmt.Sprintf("browser fault: %v", r)
		}
	}()

	s.buffer.Clear()

	target := appraisalURL(result.VIN, result.Odometer)
	if err := s.page.Navigate(target); err != nil {
		result.Status = models.StatusError
		result.Error = fmt.Sprintf("navigation failed: %v", err)
		return result
	}
	if err := s.page.WaitLoad(); err != nil {
		log.Printf("appraisal page load wait: %v", err)
	}
	time.Sleep(appraisalSettle)

	if strings.Contains(strings.ToLower(s.currentURL()), "login") {
		result.Status = models.StatusSessionExpired
		result.Error = "session expired - redirected to login"
		return result
	}

	s.scrollToBottom(3)
	time.Sleep(postScrollSettle)

	valuation, found := s.ExtractExportValue()
	applyValuation(result, valuation, found)
	return result
}

// applyValuation derives the terminal status and profit from an extraction
// outcome. Site-reported make/model override the inventory's only when
// present; profit is computed only against a known list price.
func applyValuation(result *models.AppraisalResult, v *Valuation, found bool) {
	if !found {
		result.Status = models.StatusNoData
		result.Error = "no valuation data in captured responses"
		return
	}

	result.ExportValueCAD = strconv.Itoa(v.ExportValueCAD)
	if v.Make != "" {
		result.Make = v.Make
	}
	if v.Model != "" {
		result.Model = v.Model
	}
	result.SignalTrim = v.Trim

	if result.ListPrice > 0 {
		profit := float64(v.ExportValueCAD) - result.ListPrice
		result.Profit = &profit
		if profit > 0 {
			result.Status = models.StatusProfit
		} else {
			result.Status = models.StatusLoss
		}
	} else {
		result.Status = models.StatusSuccess
	}
}

// scrollToBottom scrolls the page to the bottom the given number of times,
// one second apart, to trigger lazy-loaded valuation widgets.
func (s *Session) scrollToBottom(times int) {
	for i := 0; i < times; i++ {
		if _, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			log.Printf("scroll eval: %v", err)
			return
		}
		time.Sleep(time.Second)
	}
}

// appraisalURL builds the calculate-export page URL for a VIN and odometer.
func appraisalURL(vin, odometer string) string {
	return fmt.Sprintf("%s/appraisal/calculate-export?vin=%s&odometer=%s&is-km=true",
		signalBaseURL, url.QueryEscape(vin), url.QueryEscape(odometer))
}
