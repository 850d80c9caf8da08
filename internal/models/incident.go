package models

import (
	"fmt"
	"strings"
	"time"
)

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	StatusPending    IncidentStatus = "Pending"
	StatusInProgress IncidentStatus = "InProgress"
	StatusResolved   IncidentStatus = "Resolved"

	// StatusAll is the list filter sentinel that matches every status.
	StatusAll IncidentStatus = "All"
)

// IncidentPriority ranks how urgent an incident is.
type IncidentPriority string

const (
	PriorityLow      IncidentPriority = "Low"
	PriorityMedium   IncidentPriority = "Medium"
	PriorityHigh     IncidentPriority = "High"
	PriorityCritical IncidentPriority = "Critical"
)

// Statuses lists the assignable statuses in display order.
var Statuses = []IncidentStatus{StatusPending, StatusInProgress, StatusResolved}

// Priorities lists the priorities in display order.
var Priorities = []IncidentPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Categories lists the categories offered by the create form.
var Categories = []string{"IT Support", "Maintenance", "Infrastructure", "Security", "Cleaning", "Other"}

// Valid reports whether s is one of the assignable statuses.
func (s IncidentStatus) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p IncidentPriority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Incident is a field report. The local store owns the canonical copy;
// values held elsewhere must be reloaded after any mutation.
type Incident struct {
	ID           uint             `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       uint             `json:"user_id" gorm:"index"`
	Title        string           `json:"title" gorm:"type:varchar(200);not null"`
	Description  string           `json:"description" gorm:"type:varchar(1000);not null"`
	Category     *string          `json:"category,omitempty" gorm:"type:varchar(50)"`
	Status       IncidentStatus   `json:"status" gorm:"type:varchar(50);index;default:'Pending'"`
	Priority     IncidentPriority `json:"priority" gorm:"type:varchar(50);default:'Medium'"`
	PhotoPath    *string          `json:"photo_path,omitempty" gorm:"type:varchar(500)"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	LocationName *string          `json:"location_name,omitempty" gorm:"type:varchar(200)"`
	CreatedAt    time.Time        `json:"created_at" gorm:"index;autoCreateTime:false"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
	Mirrored     bool             `json:"mirrored" gorm:"index;not null;default:false"`
	RemoteID     *int64           `json:"remote_id,omitempty"`
}

// HasLocation reports whether both coordinates are set.
func (i *Incident) HasLocation() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// ShortDescription trims the description for list rows.
func (i *Incident) ShortDescription() string {
	r := []rune(i.Description)
	if len(r) <= 100 {
		return i.Description
	}
	return string(r[:100]) + "..."
}

// FormattedLocation renders the coordinates or "No location".
func (i *Incident) FormattedLocation() string {
	if !i.HasLocation() {
		return "No location"
	}
	return fmt.Sprintf("%.6f, %.6f", *i.Latitude, *i.Longitude)
}

// MarkMirrored records a successful push to the remote endpoint.
func (i *Incident) MarkMirrored(remoteID int64) {
	i.Mirrored = true
	i.RemoteID = &remoteID
}

// ShareText is the plain-text summary handed to the share sheet.
func (i *Incident) ShareText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\n\n", i.Title)
	fmt.Fprintf(&b, "Description: %s\n", i.Description)
	fmt.Fprintf(&b, "Category: %s\n", StringValue(i.Category))
	fmt.Fprintf(&b, "Priority: %s\n", i.Priority)
	fmt.Fprintf(&b, "Status: %s\n", i.Status)
	fmt.Fprintf(&b, "Created: %s", i.CreatedAt.Format("02/01/2006 15:04"))
	if i.HasLocation() {
		fmt.Fprintf(&b, "\nLocation: %s", i.FormattedLocation())
	}
	return b.String()
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OptionalString returns nil for blank input.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
