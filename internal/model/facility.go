// Package model defines the core domain types shared across the
// enrichment engine: facilities, jobs, and their state machines.
package model

import "time"

// FacilityStatus tracks where a facility sits in the enrichment lifecycle.
type FacilityStatus string

const (
	StatusIdle          FacilityStatus = "idle"
	StatusSearchingWeb  FacilityStatus = "searching_web"
	StatusWebFound      FacilityStatus = "web_found"
	StatusWebFailed     FacilityStatus = "web_failed"
	StatusScanningEmail FacilityStatus = "scanning_email"
	StatusEmailFound    FacilityStatus = "email_found"
	StatusEmailFailed   FacilityStatus = "email_failed"
	StatusCompleted     FacilityStatus = "completed"
)

// WebsiteSource records how a facility's website was resolved.
type WebsiteSource string

const (
	SourceGenerated WebsiteSource = "generated"
	SourceSearch    WebsiteSource = "search"
	SourceManual    WebsiteSource = "manual"
)

// Facility is a record to be enriched with a website and contact email.
// Identity fields (ID through Address) are owned by the ingestion layer;
// the engine only ever mutates the enrichment fields and Status.
type Facility struct {
	ID       string `json:"id"`
	RawID    string `json:"raw_id,omitempty"`
	Name     string `json:"name"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
	Type     string `json:"type,omitempty"`
	Address  string `json:"address,omitempty"`

	Website       string        `json:"website,omitempty"`
	WebsiteSource WebsiteSource `json:"website_source,omitempty"`
	WebsiteScore  float64       `json:"website_score"`
	Email         string        `json:"email,omitempty"`
	EmailSource   string        `json:"email_source,omitempty"`

	Status    FacilityStatus `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// transitions is the closed set of legal status moves. Terminal states for
// a single run (web_found, web_failed, email_found, email_failed,
// completed) are re-enterable by a later job, which is expressed here as a
// transition back into a searching state.
var transitions = map[FacilityStatus][]FacilityStatus{
	StatusIdle:          {StatusSearchingWeb, StatusScanningEmail, StatusEmailFailed},
	StatusSearchingWeb:  {StatusWebFound, StatusWebFailed},
	StatusWebFound:      {StatusScanningEmail, StatusSearchingWeb, StatusCompleted},
	StatusWebFailed:     {StatusSearchingWeb, StatusEmailFailed},
	StatusScanningEmail: {StatusEmailFound, StatusEmailFailed},
	StatusEmailFound:    {StatusCompleted, StatusScanningEmail, StatusSearchingWeb},
	StatusEmailFailed:   {StatusScanningEmail, StatusSearchingWeb},
	StatusCompleted:     {StatusSearchingWeb, StatusScanningEmail},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to FacilityStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HasWebsite reports whether the facility carries a resolved website.
// Facilities without one can never enter scanning_email.
func (f *Facility) HasWebsite() bool {
	return f.Website != ""
}
