package gcal

import (
	"context"
	"fmt"
	"time"

	"eventscout-backend/pkg/googleauth"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// EventInput is what the materializer asks the calendar to create.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
}

// CreatedEvent is the provider's answer: the id and a link the local
// Event row stores.
type CreatedEvent struct {
	ID   string
	Link string
}

// Service writes events into the user's primary Google Calendar.
type Service struct {
	clientID        string
	clientSecret    string
	reminderMinutes int
}

func NewService(clientID, clientSecret string, reminderMinutes int) *Service {
	return &Service{
		clientID:        clientID,
		clientSecret:    clientSecret,
		reminderMinutes: reminderMinutes,
	}
}

// CreateEvent inserts the event into the primary calendar. End defaults
// to start when absent, matching the rest of the pipeline.
func (s *Service) CreateEvent(ctx context.Context, accessToken, refreshToken string, input EventInput, onTokenRefresh googleauth.TokenUpdateFunc) (*CreatedEvent, error) {
	client := googleauth.NewClient(ctx, s.clientID, s.clientSecret, accessToken, refreshToken, onTokenRefresh)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	end := input.Start
	if input.End != nil {
		end = *input.End
	}

	gcalEvent := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       &calendar.EventDateTime{DateTime: input.Start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
	}

	if s.reminderMinutes > 0 {
		gcalEvent.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(s.reminderMinutes)},
			},
		}
	}

	created, err := srv.Events.Insert("primary", gcalEvent).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to insert calendar event: %w", err)
	}

	return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}
