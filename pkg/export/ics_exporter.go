package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// CalendarEvent is one VEVENT of an iCalendar export.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Canceled    bool
}

// ICSExporter renders events as an iCalendar (RFC 5545) document.
type ICSExporter struct {
	productID string
}

// NewICSExporter builds an exporter stamping documents with productID.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//clinic-agenda//agenda export//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises events. Every event is written with UTC timestamps and
// stamped at the given instant.
func (e *ICSExporter) Render(events []CalendarEvent, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetProductId(e.productID)
	cal.SetMethod(ical.MethodPublish)

	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("ics event requires a uid")
		}
		if !ev.End.After(ev.Start) {
			return nil, fmt.Errorf("ics event %s ends before it starts", ev.UID)
		}
		vevent := cal.AddEvent(ev.UID)
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.End.UTC())
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Canceled {
			vevent.SetStatus(ical.ObjectStatusCancelled)
		} else {
			vevent.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return []byte(cal.Serialize()), nil
}
