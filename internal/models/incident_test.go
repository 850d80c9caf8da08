package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIncident_ShortDescription(t *testing.T) {
	short := &Incident{Description: "Broken pipe"}
	assert.Equal(t, "Broken pipe", short.ShortDescription())

	long := &Incident{Description: strings.Repeat("ñ", 120)}
	assert.Equal(t, strings.Repeat("ñ", 100)+"...", long.ShortDescription())
}

func TestIncident_Location(t *testing.T) {
	lat, lon := 40.416775, -3.70379
	inc := &Incident{Latitude: &lat}
	assert.False(t, inc.HasLocation())
	assert.Equal(t, "No location", inc.FormattedLocation())

	inc.Longitude = &lon
	assert.True(t, inc.HasLocation())
	assert.Equal(t, "40.416775, -3.703790", inc.FormattedLocation())
}

func TestIncident_MarkMirrored(t *testing.T) {
	inc := &Incident{}
	inc.MarkMirrored(101)
	assert.True(t, inc.Mirrored)
	assert.Equal(t, int64(101), *inc.RemoteID)
}

func TestIncident_ShareText(t *testing.T) {
	lat, lon := 1.5, 2.5
	inc := &Incident{
		Title:       "Gate stuck",
		Description: "North gate does not open",
		Category:    OptionalString("Security"),
		Priority:    PriorityHigh,
		Status:      StatusInProgress,
		CreatedAt:   time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
		Latitude:    &lat,
		Longitude:   &lon,
	}

	want := "Incident: Gate stuck\n\n" +
		"Description: North gate does not open\n" +
		"Category: Security\n" +
		"Priority: High\n" +
		"Status: InProgress\n" +
		"Created: 09/03/2024 14:05\n" +
		"Location: 1.500000, 2.500000"
	assert.Equal(t, want, inc.ShareText())
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, StatusResolved.Valid())
	assert.False(t, StatusAll.Valid())
	assert.False(t, IncidentStatus("Closed").Valid())
	assert.True(t, PriorityCritical.Valid())
	assert.False(t, IncidentPriority("Urgent").Valid())
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, OptionalString("  "))
	assert.Equal(t, "x", StringValue(OptionalString(" x ")))
	assert.Equal(t, "", StringValue(nil))
}

func TestUser_DisplayName(t *testing.T) {
	u := &User{Username: "ana"}
	assert.Equal(t, "ana", u.DisplayName())
	u.FullName = OptionalString("Ana Lopez")
	assert.Equal(t, "Ana Lopez", u.DisplayName())
}
