package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const DefaultSheetName = "Sheet1"

type QueueItem struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Status          Status     `json:"status"`
	GuestbookStatus Status     `json:"guestbookStatus,omitempty"`
	GuestbookCount  int        `json:"guestbookCount,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// AutomatorConfig is the user-editable delivery configuration. It is persisted
// as a snapshot next to the queue and read by the scheduler at invocation time.
type AutomatorConfig struct {
	WebhookURL      string   `json:"webhookUrl" yaml:"webhook_url" validate:"omitempty,url"`
	BatchSize       int      `json:"batchSize" yaml:"batch_size" validate:"min=1"`
	IntervalMinutes float64  `json:"intervalMinutes" yaml:"interval_minutes" validate:"gt=0"`
	SheetName       string   `json:"sheetName" yaml:"sheet_name"`
	GuestbookURLs   []string `json:"guestbookUrls,omitempty" yaml:"guestbook_urls" validate:"omitempty,dive,url"`
	CustomName      string   `json:"customName,omitempty" yaml:"custom_name"`
	CustomEmail     string   `json:"customEmail,omitempty" yaml:"custom_email" validate:"omitempty,email"`
}

func DefaultAutomatorConfig() AutomatorConfig {
	return AutomatorConfig{BatchSize: 5, IntervalMinutes: 1, SheetName: DefaultSheetName}
}

// TargetSheet returns the trimmed sheet name, falling back to DefaultSheetName.
func (c AutomatorConfig) TargetSheet() string {
	if s := strings.TrimSpace(c.SheetName); s != "" {
		return s
	}
	return DefaultSheetName
}

func (c AutomatorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes * float64(time.Minute))
}

// HasAuxiliaryTargets reports whether items should carry guestbook tracking.
func (c AutomatorConfig) HasAuxiliaryTargets() bool {
	return len(c.GuestbookURLs) > 0
}

// ConfigPatch is a partial AutomatorConfig update. Nil fields are left alone.
type ConfigPatch struct {
	WebhookURL      *string   `json:"webhookUrl"`
	BatchSize       *int      `json:"batchSize"`
	IntervalMinutes *float64  `json:"intervalMinutes"`
	SheetName       *string   `json:"sheetName"`
	GuestbookURLs   *[]string `json:"guestbookUrls"`
	CustomName      *string   `json:"customName"`
	CustomEmail     *string   `json:"customEmail"`
}

func (p ConfigPatch) Apply(c AutomatorConfig) AutomatorConfig {
	if p.WebhookURL != nil {
		c.WebhookURL = strings.TrimSpace(*p.WebhookURL)
	}
	if p.BatchSize != nil {
		c.BatchSize = *p.BatchSize
	}
	if p.IntervalMinutes != nil {
		c.IntervalMinutes = *p.IntervalMinutes
	}
	if p.SheetName != nil {
		c.SheetName = *p.SheetName
	}
	if p.GuestbookURLs != nil {
		c.GuestbookURLs = append([]string(nil), (*p.GuestbookURLs)...)
	}
	if p.CustomName != nil {
		c.CustomName = *p.CustomName
	}
	if p.CustomEmail != nil {
		c.CustomEmail = *p.CustomEmail
	}
	return c
}

// Payload is the body handed to the delivery interface for one batch.
type Payload struct {
	URLs          []string  `json:"urls"`
	SheetName     string    `json:"sheetName"`
	GuestbookURLs []string  `json:"guestbookUrls,omitempty"`
	CustomName    string    `json:"customName,omitempty"`
	CustomEmail   string    `json:"customEmail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type Stats struct {
	Total                     int     `json:"total"`
	Pending                   int     `json:"pending"`
	Processing                int     `json:"processing"`
	Completed                 int     `json:"completed"`
	Failed                    int     `json:"failed"`
	TotalGuestbookSubmissions int     `json:"totalGuestbookSubmissions"`
	TotalGuestbookTargets     int     `json:"totalGuestbookTargets"`
	Progress                  float64 `json:"progress"`
}
