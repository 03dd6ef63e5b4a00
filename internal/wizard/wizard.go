// Package wizard drives chatbot creation through five linear steps:
// Configure, Customize, Train, Embed and Channels.
package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chatbot-console/internal/knowledge"
	"chatbot-console/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Step int

const (
	StepConfigure Step = iota + 1
	StepCustomize
	StepTrain
	StepEmbed
	StepChannels

	TotalSteps = int(StepChannels)
)

func (s Step) String() string {
	switch s {
	case StepConfigure:
		return "configure"
	case StepCustomize:
		return "customize"
	case StepTrain:
		return "train"
	case StepEmbed:
		return "embed"
	case StepChannels:
		return "channels"
	}
	return "unknown"
}

type DataSource string

const (
	SourceURL  DataSource = "url"
	SourcePDF  DataSource = "pdf"
	SourceText DataSource = "text"
	SourceQA   DataSource = "qa"
)

type Phase string

const (
	PhaseDrafting   Phase = "drafting"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)

var (
	ErrStepLocked       = errors.New("cannot skip ahead to an unvalidated step")
	ErrNotFinalStep     = errors.New("chatbot can only be submitted from the last step")
	ErrAlreadySubmitted = errors.New("chatbot was already submitted")
	ErrInvalidStep      = errors.New("step has validation errors")
	ErrUnknownSource    = errors.New("unknown data source")
)

// Form holds the scalar fields of the draft chatbot.
type Form struct {
	Title                     string     `json:"title"`
	Name                      string     `json:"name"`
	Instructions              string     `json:"instructions"`
	FallbackMessage           string     `json:"fallbackMessage"`
	GreetingMessage           string     `json:"greetingMessage"`
	RestrictToDataSource      bool       `json:"restrictToDataSource"`
	Width                     int        `json:"width"`
	Height                    int        `json:"height"`
	EnableWhatsappIntegration bool       `json:"enableWhatsappIntegration"`
	EnableFacebookIntegration bool       `json:"enableFacebookIntegration"`
	SelectedDataSource        DataSource `json:"selectedDataSource"`
}

// Creator persists a finished chatbot.
type Creator interface {
	CreateChatbot(ctx context.Context, bot *models.Chatbot) (*models.Chatbot, error)
}

type Options struct {
	FileLimit    int
	DeletePolicy knowledge.DeletePolicy
	Width        int
	Height       int
	Log          *logrus.Entry
}

type Wizard struct {
	ID string

	QAPairs  *knowledge.Collection[models.QAPair]
	Texts    *knowledge.Collection[string]
	Websites *knowledge.Collection[string]
	Files    *knowledge.FileSet

	mu      sync.Mutex
	step    Step
	phase   Phase
	form    Form
	errors  map[string]string
	created *models.Chatbot
	creator Creator
	log     *logrus.Entry
}

func New(creator Creator, uploader knowledge.Uploader, opts Options) *Wizard {
	if opts.FileLimit <= 0 {
		opts.FileLimit = knowledge.WizardFileLimit
	}
	if opts.Width == 0 {
		opts.Width = models.DefaultWidgetWidth
	}
	if opts.Height == 0 {
		opts.Height = models.DefaultWidgetHeight
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	id := uuid.NewString()
	return &Wizard{
		ID:       id,
		QAPairs:  knowledge.NewQAPairs(opts.DeletePolicy),
		Texts:    knowledge.NewTexts(opts.DeletePolicy),
		Websites: knowledge.NewWebsites(opts.DeletePolicy),
		Files:    knowledge.NewFileSet(uploader, opts.FileLimit, opts.DeletePolicy, opts.Log),
		step:     StepConfigure,
		phase:    PhaseDrafting,
		form: Form{
			Width:              models.ClampDimension(opts.Width),
			Height:             models.ClampDimension(opts.Height),
			SelectedDataSource: SourceURL,
		},
		errors:  map[string]string{},
		creator: creator,
		log:     opts.Log.WithField("wizard", id),
	}
}

// UpdateForm replaces the scalar fields. Width and height are clamped.
func (w *Wizard) UpdateForm(f Form) error {
	switch f.SelectedDataSource {
	case "":
		f.SelectedDataSource = SourceURL
	case SourceURL, SourcePDF, SourceText, SourceQA:
	default:
		return ErrUnknownSource
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != PhaseDrafting {
		return ErrAlreadySubmitted
	}
	f.Width = models.ClampDimension(f.Width)
	f.Height = models.ClampDimension(f.Height)
	w.form = f
	return nil
}

func (w *Wizard) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Errors returns the field errors of the last failed validation.
func (w *Wizard) Errors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyErrors(w.errors)
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ValidateStep returns the field errors for step n; an empty map means valid.
func (w *Wizard) ValidateStep(n Step) map[string]string {
	w.mu.Lock()
	form := w.form
	w.mu.Unlock()
	return w.validate(n, form)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (w *Wizard) validate(n Step, form Form) map[string]string {
	errs := map[string]string{}

	switch n {
	case StepConfigure:
		if blank(form.Title) {
			errs["title"] = "Title is required"
		}
		if blank(form.Name) {
			errs["name"] = "Name is required"
		}
		if blank(form.Instructions) {
			errs["instructions"] = "Instructions are required"
		}
	case StepCustomize:
		if blank(form.GreetingMessage) {
			errs["greetingMessage"] = "Greeting message is required"
		}
	case StepTrain:
		if msg := w.trainingError(form.SelectedDataSource); msg != "" {
			errs["trainingData"] = msg
		}
	}
	return errs
}

// Uploaded files always end up in the payload, so pending or failed ones
// block the step whatever source is selected.
func (w *Wizard) trainingError(source DataSource) string {
	uploaded, uploading, failed := w.Files.Status()
	switch {
	case uploading > 0:
		return "Please wait for all files to finish uploading"
	case failed > 0:
		return "Some files failed to upload. Remove them and try again"
	}

	switch source {
	case SourcePDF:
		if uploaded == 0 {
			return "Please upload at least one PDF file"
		}
	case SourceText:
		if w.Texts.Len() == 0 {
			return "Please add at least one text"
		}
	case SourceQA:
		if w.QAPairs.Len() == 0 {
			return "Please add at least one Q&A pair"
		}
	default:
		if w.Websites.Len() == 0 {
			return "Please add at least one website URL"
		}
	}
	return ""
}

// Next validates the current step and advances on success. It returns the
// resulting step and the field errors, empty when the step passed.
func (w *Wizard) Next() (Step, map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	errs := w.validate(w.step, w.form)
	w.errors = errs
	if len(errs) > 0 {
		return w.step, copyErrors(errs)
	}
	if int(w.step) < TotalSteps {
		w.step++
	}
	return w.step, map[string]string{}
}

func (w *Wizard) Previous() Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step > StepConfigure {
		w.step--
	}
	w.errors = map[string]string{}
	return w.step
}

// GoTo jumps back to an already reached step.
func (w *Wizard) GoTo(n Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n < StepConfigure || n > w.step {
		return ErrStepLocked
	}
	w.step = n
	w.errors = map[string]string{}
	return nil
}

// Payload assembles the chatbot sent on submit. Knowledge collections are
// sent in full without client-only fields.
func (w *Wizard) Payload() *models.Chatbot {
	w.mu.Lock()
	form := w.form
	w.mu.Unlock()

	return &models.Chatbot{
		Title:                     strings.TrimSpace(form.Title),
		Name:                      strings.TrimSpace(form.Name),
		Status:                    models.ChatbotActive,
		Instructions:              form.Instructions,
		FallbackMessage:           form.FallbackMessage,
		GreetingMessage:           form.GreetingMessage,
		RestrictToDataSource:      form.RestrictToDataSource,
		Width:                     models.ClampDimension(form.Width),
		Height:                    models.ClampDimension(form.Height),
		EnableWhatsappIntegration: form.EnableWhatsappIntegration,
		EnableFacebookIntegration: form.EnableFacebookIntegration,
		FileIDs:                   w.Files.FileIDs(),
		QAPairs:                   w.QAPairs.Values(),
		AddedTexts:                w.Texts.Values(),
		AddedWebsites:             w.Websites.Values(),
	}
}

// Submit creates the chatbot. It is only accepted from the last step and
// only once; a failed create returns the wizard to drafting.
func (w *Wizard) Submit(ctx context.Context) (*models.Chatbot, error) {
	w.mu.Lock()
	switch {
	case w.phase != PhaseDrafting:
		w.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case w.step != StepChannels:
		w.mu.Unlock()
		return nil, ErrNotFinalStep
	}
	if errs := w.validate(w.step, w.form); len(errs) > 0 {
		w.errors = errs
		w.mu.Unlock()
		return nil, ErrInvalidStep
	}
	w.phase = PhaseSubmitting
	w.mu.Unlock()

	created, err := w.creator.CreateChatbot(ctx, w.Payload())

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.phase = PhaseDrafting
		w.log.WithError(err).Error("Failed to create chatbot")
		return nil, err
	}
	w.phase = PhaseSubmitted
	w.created = created
	w.log.WithField("chatbot", created.ID).Info("Chatbot created")
	return created, nil
}

// Created returns the chatbot once submitted.
func (w *Wizard) Created() *models.Chatbot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.created
}

// State is the wizard as rendered by the console.
type State struct {
	ID         string                          `json:"id"`
	Step       Step                            `json:"step"`
	StepName   string                          `json:"stepName"`
	TotalSteps int                             `json:"totalSteps"`
	Phase      Phase                           `json:"phase"`
	Form       Form                            `json:"form"`
	Errors     map[string]string               `json:"errors"`
	QAPairs    []knowledge.Item[models.QAPair] `json:"qaPairs"`
	Texts      []knowledge.Item[string]        `json:"addedTexts"`
	Websites   []knowledge.Item[string]        `json:"addedWebsites"`
	Files      []knowledge.File                `json:"uploadedFiles"`
	Created    *models.Chatbot                 `json:"created,omitempty"`
}

func (w *Wizard) State() State {
	w.mu.Lock()
	st := State{
		ID:         w.ID,
		Step:       w.step,
		StepName:   w.step.String(),
		TotalSteps: TotalSteps,
		Phase:      w.phase,
		Form:       w.form,
		Errors:     copyErrors(w.errors),
		Created:    w.created,
	}
	w.mu.Unlock()

	st.QAPairs = w.QAPairs.Items()
	st.Texts = w.Texts.Items()
	st.Websites = w.Websites.Items()
	st.Files = w.Files.Files()
	return st
}
