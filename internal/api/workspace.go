package api

import (
	"context"
	"sync"

	"chatbot-console/internal/chatbot"
	"chatbot-console/internal/integration"
	"chatbot-console/internal/store"
	"chatbot-console/internal/wizard"
	"chatbot-console/pkg/models"
)

// Workspace is the server-side page state of one signed-in user: open
// wizards, detail views and integration panels, plus the user's slice of the
// persisted store.
type Workspace struct {
	UserID string
	Store  store.Store

	mu        sync.Mutex
	wizards   map[string]*wizard.Wizard
	views     map[models.ID]*chatbot.View
	whatsapp  map[models.ID]*integration.Panel[models.WhatsAppIntegration]
	messenger map[models.ID]*integration.Panel[models.MessengerIntegration]
	calendars map[models.ID]*integration.CalendarPanel
}

type Workspaces struct {
	mu     sync.Mutex
	byUser map[string]*Workspace
	store  store.Store
}

func NewWorkspaces(s store.Store) *Workspaces {
	return &Workspaces{byUser: map[string]*Workspace{}, store: s}
}

// For returns the workspace of userID, creating it on first use.
func (ws *Workspaces) For(userID string) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.byUser[userID]
	if !ok {
		w = &Workspace{
			UserID:    userID,
			Store:     store.Prefixed(ws.store, "user:"+userID+":"),
			wizards:   map[string]*wizard.Wizard{},
			views:     map[models.ID]*chatbot.View{},
			whatsapp:  map[models.ID]*integration.Panel[models.WhatsAppIntegration]{},
			messenger: map[models.ID]*integration.Panel[models.MessengerIntegration]{},
			calendars: map[models.ID]*integration.CalendarPanel{},
		}
		ws.byUser[userID] = w
	}
	return w
}

func (w *Workspace) AddWizard(wz *wizard.Wizard) {
	w.mu.Lock()
	w.wizards[wz.ID] = wz
	w.mu.Unlock()
}

func (w *Workspace) Wizard(id string) (*wizard.Wizard, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wz, ok := w.wizards[id]
	return wz, ok
}

func (w *Workspace) RemoveWizard(id string) {
	w.mu.Lock()
	delete(w.wizards, id)
	w.mu.Unlock()
}

// View returns the detail view of a chatbot, creating it with create when
// missing. The second result reports whether it was created.
func (w *Workspace) View(id models.ID, create func() *chatbot.View) (*chatbot.View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.views[id]; ok {
		return v, false
	}
	v := create()
	w.views[id] = v
	return v, true
}

func (w *Workspace) ExistingView(id models.ID) (*chatbot.View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.views[id]
	return v, ok
}

type refresher interface {
	Refresh(ctx context.Context) error
}

// openPanel returns the panel of a chatbot, creating it when missing. The
// integration is fetched the first time the panel is opened and again
// whenever refresh is set. A new panel whose first fetch failed is forgotten.
func openPanel[P refresher](ctx context.Context, mu *sync.Mutex, m map[models.ID]P, id models.ID, refresh bool, create func() P) (P, error) {
	mu.Lock()
	p, ok := m[id]
	if !ok {
		p = create()
		m[id] = p
	}
	mu.Unlock()

	if ok && !refresh {
		return p, nil
	}
	if err := p.Refresh(ctx); err != nil {
		if !ok {
			mu.Lock()
			delete(m, id)
			mu.Unlock()
		}
		var zero P
		return zero, err
	}
	return p, nil
}

func (w *Workspace) WhatsAppPanel(ctx context.Context, id models.ID, refresh bool, create func() *integration.Panel[models.WhatsAppIntegration]) (*integration.Panel[models.WhatsAppIntegration], error) {
	return openPanel(ctx, &w.mu, w.whatsapp, id, refresh, create)
}

func (w *Workspace) MessengerPanel(ctx context.Context, id models.ID, refresh bool, create func() *integration.Panel[models.MessengerIntegration]) (*integration.Panel[models.MessengerIntegration], error) {
	return openPanel(ctx, &w.mu, w.messenger, id, refresh, create)
}

func (w *Workspace) CalendarPanel(ctx context.Context, id models.ID, refresh bool, create func() *integration.CalendarPanel) (*integration.CalendarPanel, error) {
	return openPanel(ctx, &w.mu, w.calendars, id, refresh, create)
}
