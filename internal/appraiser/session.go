package appraiser

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"exportappraiser/internal/metrics"
	"exportappraiser/internal/models"
)

const (
	signalBaseURL = "https://app.signal.vin"

	// The appraisal SPA fingerprints headless sessions aggressively; the
	// Safari-on-Mac user agent matches what its operators browse with.
	sessionUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	viewportWidth  = 1280
	viewportHeight = 720

	// Fixed settle intervals. The SPA gives no readiness signal, so timing
	// is the synchronization mechanism throughout.
	slowMotionDelay  = 50 * time.Millisecond
	initialSettle    = 3 * time.Second
	extractSettle    = 3 * time.Second
	appraisalSettle  = 12 * time.Second
	postScrollSettle = 5 * time.Second
	keystrokeDelay   = 50 * time.Millisecond
	loginPollTries   = 20
)

// Session owns one browser instance and one authenticated page against the
// appraisal site. A Session is single-owner: the batch worker that starts it
// is the only goroutine allowed to drive it (the network-capture goroutine
// only appends to the buffer).
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	buffer   *ResponseBuffer
	metrics  *metrics.Metrics

	headless  bool
	chromeBin string
}

// Options configures a new Session.
type Options struct {
	Headless  bool
	ChromeBin string
	Metrics   *metrics.Metrics
}

// NewSession creates an unstarted session.
func NewSession(opts Options) *Session {
	return &Session{
		buffer:    NewResponseBuffer(),
		metrics:   opts.Metrics,
		headless:  opts.Headless,
		chromeBin: opts.ChromeBin,
	}
}

// Start launches the browser, opens a stealth page with the fixed viewport
// and user agent, and registers the network-response observer.
func (s *Session) Start() error {
	fmt.Println("🚀 Starting appraisal browser session...")

	l := launcher.New().
		Headless(s.headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("window-size", fmt.Sprintf("%d,%d", viewportWidth, viewportHeight))

	if path := findChromePath(s.chromeBin); path != "" {
		fmt.Printf("🔍 Using Chrome at: %s\n", path)
		l = l.Bin(path)
	}

	if isDockerEnvironment() {
		fmt.Println("🐳 Docker environment detected, applying container-specific settings")
		l = l.Set("disable-setuid-sandbox").
			Set("no-first-run").
			Set("disable-default-apps").
			Set("single-process")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	s.launcher = l

	browser := rod.New().ControlURL(controlURL).SlowMotion(slowMotionDelay)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	page, err := stealth.Page(browser)
	if err != nil {
		return fmt.Errorf("failed to open stealth page: %w", err)
	}
	s.page = page

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: sessionUserAgent}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	// The observer goroutine keeps its own page handle: Stop nils the
	// session fields while events may still be dispatching, so the handler
	// must never read them.
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		s.captureResponse(page, e)
	})()

	fmt.Println("✅ Browser session ready")
	return nil
}

// Stop releases the page, browser and launched process. Release errors are
// swallowed; a failure on one handle must not skip cleanup of the rest.
func (s *Session) Stop() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			log.Printf("page close: %v", err)
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Printf("browser close: %v", err)
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	fmt.Println("✅ Browser session closed")
}

// Buffer exposes the session's capture buffer.
func (s *Session) Buffer() *ResponseBuffer {
	return s.buffer
}

// captureResponse filters and buffers one observed network response. Bodies
// that cannot be read (evicted, still streaming) are skipped silently; one
// unreadable response must never fault the lookup.
func (s *Session) captureResponse(page *rod.Page, e *proto.NetworkResponseReceived) {
	respURL := e.Response.URL
	if !shouldCapture(respURL) {
		return
	}

	body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
	if err != nil {
		return
	}
	text := body.Body
	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return
		}
		text = string(decoded)
	}

	s.buffer.Add(models.CapturedResponse{
		URL:    respURL,
		Status: e.Response.Status,
		Body:   text,
	})
	s.metrics.IncCaptured()
}

// shouldCapture filters observed responses down to the appraisal site's own
// traffic plus anything export-related.
func shouldCapture(url string) bool {
	return strings.Contains(url, "signal.vin") || strings.Contains(strings.ToLower(url), "export")
}

// currentURL reads the page's URL, empty on failure.
func (s *Session) currentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// findChromePath looks for a Chrome/Chromium binary, preferring an explicit
// configuration, then CHROME_BIN, then common install locations.
func findChromePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}

	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		if _, err := os.Stat(chromeBin); err == nil {
			return chromeBin
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
		"/opt/google/chrome/chrome",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// isDockerEnvironment checks if running inside Docker.
func isDockerEnvironment() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		return strings.Contains(string(data), "docker") || strings.Contains(string(data), "containerd")
	}

	return false
}
