// Package integration manages the per-channel credential panels of a
// chatbot: WhatsApp and Messenger setup and toggling, and the Google
// Calendar connection.
package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatbot-console/pkg/models"

	"github.com/sirupsen/logrus"
)

type State string

const (
	StateDisabled     State = "disabled"
	StateSetupPending State = "setup_pending"
	StateEnabling     State = "enabling"
	StateDisabling    State = "disabling"
	StateEnabled      State = "enabled"
)

// SetupDelay is how long the console waits before opening the setup modal.
const SetupDelay = 300 * time.Millisecond

var ErrToggleInFlight = errors.New("integration toggle already in progress")

// Channel adapts one messaging platform to a Panel.
type Channel[T any] interface {
	Name() string
	Get(ctx context.Context, chatbotID models.ID) (*T, error)
	Setup(ctx context.Context, form T) error
	Toggle(ctx context.Context, chatbotID models.ID, enabled bool) error
	// Verify checks the credentials against the provider.
	Verify(ctx context.Context, form T) (string, error)
	Enabled(integration *T) bool
	SetEnabled(integration *T, enabled bool)
	Bind(form *T, chatbotID models.ID)
}

type ToggleAction string

const (
	ActionNone       ToggleAction = "none"
	ActionOpenSetup  ToggleAction = "open_setup"
	ActionToggled    ToggleAction = "toggled"
	ActionRolledBack ToggleAction = "rolled_back"
)

type ToggleResult struct {
	Action  ToggleAction `json:"action"`
	DelayMS int64        `json:"delayMs,omitempty"`
	State   State        `json:"state"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Panel holds the view state of one channel for one chatbot.
type Panel[T any] struct {
	mu          sync.Mutex
	chatbotID   models.ID
	channel     Channel[T]
	integration *T
	state       State
	modalOpen   bool
	form        T
	formSet     bool
	log         *logrus.Entry
}

func NewPanel[T any](chatbotID models.ID, channel Channel[T], log *logrus.Entry) *Panel[T] {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Panel[T]{
		chatbotID: chatbotID,
		channel:   channel,
		state:     StateDisabled,
		log:       log.WithFields(logrus.Fields{"channel": channel.Name(), "chatbot": chatbotID}),
	}
}

func (p *Panel[T]) stateFor(integration *T) State {
	if integration != nil && p.channel.Enabled(integration) {
		return StateEnabled
	}
	return StateDisabled
}

// Refresh re-fetches the integration. A missing record means disabled.
func (p *Panel[T]) Refresh(ctx context.Context) error {
	integration, err := p.channel.Get(ctx, p.chatbotID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.integration = integration
	if p.state != StateSetupPending || integration != nil {
		p.state = p.stateFor(integration)
	}
	return nil
}

// Toggle enables or disables the channel. Without an integration record
// enabling only opens the setup modal and makes no backend call. Otherwise
// the flip is applied optimistically and rolled back if the backend refuses.
func (p *Panel[T]) Toggle(ctx context.Context, enabled bool) (ToggleResult, error) {
	p.mu.Lock()
	if st := p.state; st == StateEnabling || st == StateDisabling {
		p.mu.Unlock()
		return ToggleResult{Action: ActionNone, State: st}, ErrToggleInFlight
	}
	if p.integration == nil {
		defer p.mu.Unlock()
		if !enabled {
			return ToggleResult{Action: ActionNone, State: p.state}, nil
		}
		p.state = StateSetupPending
		p.modalOpen = true
		return ToggleResult{Action: ActionOpenSetup, DelayMS: SetupDelay.Milliseconds(), State: p.state}, nil
	}

	previous := p.channel.Enabled(p.integration)
	p.channel.SetEnabled(p.integration, enabled)
	if enabled {
		p.state = StateEnabling
	} else {
		p.state = StateDisabling
	}
	p.mu.Unlock()

	if err := p.channel.Toggle(ctx, p.chatbotID, enabled); err != nil {
		p.mu.Lock()
		if p.integration != nil {
			p.channel.SetEnabled(p.integration, previous)
		}
		p.state = p.stateFor(p.integration)
		st := p.state
		p.mu.Unlock()

		p.log.WithError(err).Error("Failed to toggle integration")
		return ToggleResult{Action: ActionRolledBack, State: st}, err
	}

	p.mu.Lock()
	p.state = p.stateFor(p.integration)
	p.mu.Unlock()

	if err := p.Refresh(ctx); err != nil {
		p.log.WithError(err).Warn("Failed to refresh integration after toggle")
	}
	return ToggleResult{Action: ActionToggled, State: p.State()}, nil
}

// OpenSetup shows the modal, prefilled from the saved record on first open.
func (p *Panel[T]) OpenSetup() T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.integration != nil && !p.formSet {
		p.form = *p.integration
		p.formSet = true
	}
	p.modalOpen = true
	return p.form
}

// CloseSetup hides the modal. A pending enable without a record is dropped.
func (p *Panel[T]) CloseSetup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.modalOpen = false
	if p.state == StateSetupPending {
		p.state = p.stateFor(p.integration)
	}
}

// TestConfiguration validates the form and checks the credentials with the
// provider.
func (p *Panel[T]) TestConfiguration(ctx context.Context, form T) (TestResult, error) {
	if verr := ValidateForm(form); verr != nil {
		return TestResult{}, verr
	}

	msg, err := p.channel.Verify(ctx, form)
	if err != nil {
		p.log.WithError(err).Warn("Credential check failed")
		return TestResult{Success: false, Message: err.Error()}, nil
	}
	return TestResult{Success: true, Message: msg}, nil
}

// SaveSetup posts the full credential set, re-fetches the record and closes
// the modal. The form keeps its values for re-editing.
func (p *Panel[T]) SaveSetup(ctx context.Context, form T) error {
	if verr := ValidateForm(form); verr != nil {
		return verr
	}
	p.channel.Bind(&form, p.chatbotID)

	if err := p.channel.Setup(ctx, form); err != nil {
		p.log.WithError(err).Error("Failed to save integration")
		return err
	}

	p.mu.Lock()
	p.form = form
	p.formSet = true
	p.mu.Unlock()

	if err := p.Refresh(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.modalOpen = false
	if p.state == StateSetupPending {
		p.state = p.stateFor(p.integration)
	}
	p.mu.Unlock()
	return nil
}

func (p *Panel[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

type View[T any] struct {
	Channel     string `json:"channel"`
	State       State  `json:"state"`
	Enabled     bool   `json:"enabled"`
	Integration *T     `json:"integration"`
	ModalOpen   bool   `json:"modalOpen"`
	Form        T      `json:"form"`
}

func (p *Panel[T]) View() View[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View[T]{
		Channel:   p.channel.Name(),
		State:     p.state,
		Enabled:   p.integration != nil && p.channel.Enabled(p.integration),
		ModalOpen: p.modalOpen,
		Form:      p.form,
	}
	if p.integration != nil {
		copied := *p.integration
		v.Integration = &copied
	}
	return v
}
