package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/npezzotti/go-chatclient/internal/api"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// EventStore keeps the fetched calendar events and groups them by date
// for the side panel. There is no derived state beyond the grouping.
type EventStore struct {
	log    *log.Logger
	api    *api.Client
	events []types.CalendarEvent
}

func NewEventStore(logger *log.Logger, apiClient *api.Client) *EventStore {
	return &EventStore{log: logger, api: apiClient}
}

// Load replaces the event set with a fresh fetch; prior state is kept
// on failure.
func (es *EventStore) Load(ctx context.Context) error {
	events, err := es.api.Events(ctx)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	es.events = events
	return nil
}

func (es *EventStore) Create(ctx context.Context, event types.CalendarEvent) error {
	if strings.TrimSpace(event.Title) == "" {
		return fmt.Errorf("event title cannot be empty")
	}
	if strings.TrimSpace(event.Date) == "" {
		return fmt.Errorf("event date cannot be empty")
	}

	created, err := es.api.CreateEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	es.events = append(es.events, created)
	return nil
}

func (es *EventStore) Delete(ctx context.Context, id int) error {
	if err := es.api.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	kept := es.events[:0:0]
	for _, ev := range es.events {
		if ev.Id != id {
			kept = append(kept, ev)
		}
	}
	es.events = kept

	return nil
}

func (es *EventStore) Events() []types.CalendarEvent {
	out := make([]types.CalendarEvent, len(es.events))
	copy(out, es.events)
	return out
}

// ByDate groups events by their date string. Dates returns the group
// keys sorted, for stable display.
func (es *EventStore) ByDate() map[string][]types.CalendarEvent {
	grouped := make(map[string][]types.CalendarEvent)
	for _, ev := range es.events {
		grouped[ev.Date] = append(grouped[ev.Date], ev)
	}

	return grouped
}

func (es *EventStore) Dates() []string {
	grouped := es.ByDate()
	dates := make([]string, 0, len(grouped))
	for date := range grouped {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	return dates
}
