package integration

import (
	"context"
	"sync"

	"chatbot-console/pkg/models"
)

type CalendarBackend interface {
	GetGoogleCalendar(ctx context.Context, chatbotID models.ID) (*models.GoogleCalendarIntegration, error)
	DeleteGoogleCalendar(ctx context.Context, chatbotID models.ID) error
}

// CalendarPanel shows whether a Google Calendar is connected.
type CalendarPanel struct {
	mu          sync.Mutex
	chatbotID   models.ID
	backend     CalendarBackend
	integration *models.GoogleCalendarIntegration
}

func NewCalendarPanel(chatbotID models.ID, backend CalendarBackend) *CalendarPanel {
	return &CalendarPanel{chatbotID: chatbotID, backend: backend}
}

func (p *CalendarPanel) Refresh(ctx context.Context) error {
	integration, err := p.backend.GetGoogleCalendar(ctx, p.chatbotID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.integration = integration
	p.mu.Unlock()
	return nil
}

func (p *CalendarPanel) Disconnect(ctx context.Context) error {
	if err := p.backend.DeleteGoogleCalendar(ctx, p.chatbotID); err != nil {
		return err
	}
	p.mu.Lock()
	p.integration = nil
	p.mu.Unlock()
	return nil
}

type CalendarView struct {
	Connected   bool                              `json:"connected"`
	Integration *models.GoogleCalendarIntegration `json:"integration"`
}

func (p *CalendarPanel) View() CalendarView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.integration == nil {
		return CalendarView{}
	}
	copied := *p.integration
	return CalendarView{Connected: true, Integration: &copied}
}
