// pkg/email/email.go
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type Service struct {
	apiKey    string
	from      string
	templates *template.Template
}

type payload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type WelcomeData struct {
	Name string
}

type TrialStartedData struct {
	Name    string
	EndsAt  time.Time
	Credits int
}

type TrialExpiryWarningData struct {
	Name     string
	DaysLeft int
	EndsAt   time.Time
}

type TrialEndedData struct {
	Name string
}

type TierChangeScheduledData struct {
	Name       string
	TargetTier string
	Effective  time.Time
}

type TierChangedData struct {
	Name      string
	Tier      string
	Credits   int
	PeriodEnd time.Time
}

type PaymentReceiptData struct {
	Name     string
	Tier     string
	Amount   float64
	Currency string
}

func NewService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &Service{
		apiKey:    apiKey,
		from:      "Kotoba <noreply@kotoba.app>",
		templates: templates,
	}, nil
}

func (s *Service) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	jsonData, err := json.Marshal(payload{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("Resend API response: Status: %d, Body: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	return nil
}

// Email sending methods
func (s *Service) SendWelcomeEmail(email, name string) error {
	return s.sendTemplateEmail(email, "Welcome to Kotoba! 🎌", "welcome.html", WelcomeData{Name: name})
}

func (s *Service) SendTrialStartedEmail(email, name string, endsAt time.Time, credits int) error {
	data := TrialStartedData{Name: name, EndsAt: endsAt, Credits: credits}
	return s.sendTemplateEmail(email, "Your Kotoba Trial Has Started 🎉", "trial_started.html", data)
}

func (s *Service) SendTrialExpiryWarning(email, name string, daysLeft int, endsAt time.Time) error {
	data := TrialExpiryWarningData{Name: name, DaysLeft: daysLeft, EndsAt: endsAt}
	subject := fmt.Sprintf("Your Trial Ends in %d Days ⚠️", daysLeft)
	return s.sendTemplateEmail(email, subject, "trial_expiry_warning.html", data)
}

func (s *Service) SendTrialEndedEmail(email, name string) error {
	return s.sendTemplateEmail(email, "Your Kotoba Trial Has Ended", "trial_ended.html", TrialEndedData{Name: name})
}

func (s *Service) SendTierChangeScheduledEmail(email, name, targetTier string, effective time.Time) error {
	data := TierChangeScheduledData{Name: name, TargetTier: targetTier, Effective: effective}
	return s.sendTemplateEmail(email, "Your Plan Change Is Scheduled", "tier_change_scheduled.html", data)
}

func (s *Service) SendTierChangedEmail(email, name, tier string, credits int, periodEnd time.Time) error {
	data := TierChangedData{Name: name, Tier: tier, Credits: credits, PeriodEnd: periodEnd}
	return s.sendTemplateEmail(email, fmt.Sprintf("You Are Now on the %s Plan 🎉", tier), "tier_changed.html", data)
}

func (s *Service) SendPaymentReceiptEmail(email, name, tier string, amount float64, currency string) error {
	data := PaymentReceiptData{Name: name, Tier: tier, Amount: amount, Currency: currency}
	return s.sendTemplateEmail(email, "Your Kotoba Payment Receipt 🧾", "payment_receipt.html", data)
}
