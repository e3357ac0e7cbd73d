package appraiser

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Login drives the interactive login flow. The site offers no token or API
// auth, so the session signs in exactly like a person: slow keystrokes, tab
// between fields, submit. Returns an error when no authenticated page is
// reached; the caller must not proceed to appraisals in that case. No retry
// is attempted here, retry policy belongs to the caller.
func (s *Session) Login(email, password string) error {
	fmt.Println("🔐 Logging in to appraisal site...")

	if err := s.page.Navigate(signalBaseURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", signalBaseURL, err)
	}
	if err := s.page.WaitLoad(); err != nil {
		log.Printf("login page load wait: %v", err)
	}
	time.Sleep(initialSettle)

	if s.authenticated() {
		fmt.Println("✅ Session already authenticated")
		return nil
	}

	// Landing pages sometimes interpose a login-entry link before the form.
	if entry, err := s.page.Timeout(2 * time.Second).ElementR("a, button", "/log\\s?in/i"); err == nil {
		if visible, _ := entry.Visible(); visible {
			if err := entry.Click(proto.InputMouseButtonLeft, 1); err == nil {
				time.Sleep(2 * time.Second)
			}
		}
	}

	// The form renders exactly one text input first: the email field.
	emailField, err := s.page.Timeout(10 * time.Second).Element("input")
	if err != nil {
		return fmt.Errorf("login form did not appear: %w", err)
	}
	if err := emailField.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("email field not clickable: %w", err)
	}
	if err := emailField.SelectAllText(); err != nil {
		log.Printf("email field clear: %v", err)
	}
	s.typeSlowly(email)

	if err := s.page.Keyboard.Press(input.Tab); err != nil {
		return fmt.Errorf("could not move to password field: %w", err)
	}
	s.typeSlowly(password)

	// Remember-me checkbox, best-effort.
	if box, err := s.page.Timeout(2 * time.Second).Element(`input[type="checkbox"]`); err == nil {
		if visible, _ := box.Visible(); visible {
			if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
				log.Printf("checkbox click: %v", err)
			}
		}
	}

	submitted := false
	if submit, err := s.page.Timeout(2 * time.Second).ElementR("button", "/log\\s?in|sign\\s?in|submit/i"); err == nil {
		if visible, _ := submit.Visible(); visible {
			if err := submit.Click(proto.InputMouseButtonLeft, 1); err == nil {
				submitted = true
			}
		}
	}
	if !submitted {
		if err := s.page.Keyboard.Press(input.Enter); err != nil {
			return fmt.Errorf("could not submit login form: %w", err)
		}
	}

	for i := 0; i < loginPollTries; i++ {
		time.Sleep(time.Second)
		if s.authenticated() {
			fmt.Println("✅ Login successful")
			return nil
		}
	}

	return fmt.Errorf("login did not reach an authenticated page after %d seconds", loginPollTries)
}

// authenticated reports whether the current URL is inside the signed-in app.
func (s *Session) authenticated() bool {
	current := strings.ToLower(s.currentURL())
	return strings.Contains(current, "dashboard") || strings.Contains(current, "appraisal")
}

// typeSlowly inserts text one character at a time with a human-paced delay.
func (s *Session) typeSlowly(text string) {
	for _, r := range text {
		if err := s.page.InsertText(string(r)); err != nil {
			log.Printf("keystroke: %v", err)
			return
		}
		time.Sleep(keystrokeDelay)
	}
}
