// Package chatbot implements the detail page of an existing chatbot: a
// read-only view that can switch into editing a single draft, the embed code
// generator and the widget size preview.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatbot-console/internal/knowledge"
	"chatbot-console/pkg/models"

	"github.com/sirupsen/logrus"
)

type Mode string

const (
	ModeViewing Mode = "viewing"
	ModeEditing Mode = "editing"
	ModeSaving  Mode = "saving"
)

var (
	ErrNotLoaded    = errors.New("chatbot not loaded")
	ErrNotEditing   = errors.New("chatbot is not being edited")
	ErrSaveInFlight = errors.New("chatbot is being saved")
)

type Backend interface {
	GetChatbot(ctx context.Context, id models.ID) (*models.Chatbot, error)
	UpdateChatbot(ctx context.Context, id models.ID, bot *models.Chatbot) (*models.Chatbot, error)
	ListKnowledgeBases(ctx context.Context, id models.ID) ([]models.KnowledgeBase, error)
}

// Fields are the scalar chatbot fields editable on the detail page.
type Fields struct {
	Title                string `json:"title"`
	Name                 string `json:"name"`
	Instructions         string `json:"instructions"`
	FallbackMessage      string `json:"fallbackMessage"`
	GreetingMessage      string `json:"greetingMessage"`
	RestrictToDataSource bool   `json:"restrictToDataSource"`
}

func fieldsOf(bot *models.Chatbot) Fields {
	return Fields{
		Title:                bot.Title,
		Name:                 bot.Name,
		Instructions:         bot.Instructions,
		FallbackMessage:      bot.FallbackMessage,
		GreetingMessage:      bot.GreetingMessage,
		RestrictToDataSource: bot.RestrictToDataSource,
	}
}

// Draft is the one editable copy of the record. It is either committed by
// Save or dropped by Cancel.
type Draft struct {
	Fields   Fields
	Width    int
	Height   int
	QAPairs  *knowledge.Collection[models.QAPair]
	Texts    *knowledge.Collection[string]
	Websites *knowledge.Collection[string]
	Files    *knowledge.FileSet
}

type Options struct {
	FileLimit    int
	DeletePolicy knowledge.DeletePolicy
	Embed        EmbedConfig
	Log          *logrus.Entry
}

type View struct {
	ID models.ID

	mu             sync.Mutex
	mode           Mode
	record         *models.Chatbot
	knowledgeBases []models.KnowledgeBase
	draft          *Draft

	backend  Backend
	uploader knowledge.Uploader
	opts     Options
	log      *logrus.Entry

	// OnFileChange is attached to the file set of every new draft.
	OnFileChange func(knowledge.File)
}

func NewView(id models.ID, backend Backend, uploader knowledge.Uploader, opts Options) *View {
	if opts.FileLimit <= 0 {
		opts.FileLimit = knowledge.DetailFileLimit
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &View{
		ID:       id,
		mode:     ModeViewing,
		backend:  backend,
		uploader: uploader,
		opts:     opts,
		log:      opts.Log.WithField("chatbot", id),
	}
}

// Load fetches the record and its knowledge-base metadata. A failed
// metadata fetch is logged and leaves the list empty.
func (v *View) Load(ctx context.Context) error {
	bot, err := v.backend.GetChatbot(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("failed to load chatbot: %w", err)
	}
	normalizeSize(bot)

	kbs, err := v.backend.ListKnowledgeBases(ctx, v.ID)
	if err != nil {
		v.log.WithError(err).Warn("Failed to load knowledge bases")
		kbs = []models.KnowledgeBase{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == ModeSaving {
		return ErrSaveInFlight
	}
	v.record = bot
	v.knowledgeBases = kbs
	return nil
}

func normalizeSize(bot *models.Chatbot) {
	if bot.Width == 0 {
		bot.Width = models.DefaultWidgetWidth
	}
	if bot.Height == 0 {
		bot.Height = models.DefaultWidgetHeight
	}
	bot.Width = models.ClampDimension(bot.Width)
	bot.Height = models.ClampDimension(bot.Height)
}

// BeginEdit snapshots the record into a fresh draft. Calling it while
// already editing keeps the current draft.
func (v *View) BeginEdit() (*Draft, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case v.record == nil:
		return nil, ErrNotLoaded
	case v.mode == ModeSaving:
		return nil, ErrSaveInFlight
	case v.mode == ModeEditing:
		return v.draft, nil
	}

	names := map[string]string{}
	for _, kb := range v.knowledgeBases {
		if kb.FileID != "" && kb.Name != "" {
			names[kb.FileID] = kb.Name
		}
	}

	d := &Draft{
		Fields:   fieldsOf(v.record),
		Width:    v.record.Width,
		Height:   v.record.Height,
		QAPairs:  knowledge.NewQAPairs(v.opts.DeletePolicy),
		Texts:    knowledge.NewTexts(v.opts.DeletePolicy),
		Websites: knowledge.NewWebsites(v.opts.DeletePolicy),
		Files:    knowledge.NewFileSet(v.uploader, v.opts.FileLimit, v.opts.DeletePolicy, v.log),
	}
	d.QAPairs.Hydrate(v.record.QAPairs)
	d.Texts.Hydrate(v.record.AddedTexts)
	d.Websites.Hydrate(v.record.AddedWebsites)
	d.Files.Hydrate(v.record.FileIDs, names)
	d.Files.OnChange = v.OnFileChange

	v.draft = d
	v.mode = ModeEditing
	return d, nil
}

// Draft returns the current draft, or ErrNotEditing.
func (v *View) Draft() (*Draft, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeEditing {
		return nil, ErrNotEditing
	}
	return v.draft, nil
}

func (v *View) UpdateDraft(f Fields) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.mode {
	case ModeSaving:
		return ErrSaveInFlight
	case ModeViewing:
		return ErrNotEditing
	}
	v.draft.Fields = f
	return nil
}

// SetSize clamps the widget size and applies it to the draft when editing,
// otherwise to the live record. It returns the regenerated embed code.
func (v *View) SetSize(width, height int) (string, error) {
	width = models.ClampDimension(width)
	height = models.ClampDimension(height)

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case v.record == nil:
		return "", ErrNotLoaded
	case v.mode == ModeSaving:
		return "", ErrSaveInFlight
	case v.mode == ModeEditing:
		v.draft.Width, v.draft.Height = width, height
	default:
		v.record.Width, v.record.Height = width, height
	}
	return Snippet(v.opts.Embed, v.ID, width, height), nil
}

// Save puts the full object: form fields, size and every knowledge
// collection in full. On failure the view returns to editing with the
// draft untouched.
func (v *View) Save(ctx context.Context) (*models.Chatbot, error) {
	v.mu.Lock()
	switch v.mode {
	case ModeSaving:
		v.mu.Unlock()
		return nil, ErrSaveInFlight
	case ModeViewing:
		v.mu.Unlock()
		return nil, ErrNotEditing
	}
	d := v.draft
	if _, uploading, _ := d.Files.Status(); uploading > 0 {
		v.mu.Unlock()
		return nil, knowledge.ErrUploadInProgress
	}

	payload := *v.record
	payload.Title = d.Fields.Title
	payload.Name = d.Fields.Name
	payload.Instructions = d.Fields.Instructions
	payload.FallbackMessage = d.Fields.FallbackMessage
	payload.GreetingMessage = d.Fields.GreetingMessage
	payload.RestrictToDataSource = d.Fields.RestrictToDataSource
	payload.Width = models.ClampDimension(d.Width)
	payload.Height = models.ClampDimension(d.Height)
	payload.FileIDs = d.Files.FileIDs()
	payload.QAPairs = d.QAPairs.Values()
	payload.AddedTexts = d.Texts.Values()
	payload.AddedWebsites = d.Websites.Values()
	v.mode = ModeSaving
	v.mu.Unlock()

	saved, err := v.backend.UpdateChatbot(ctx, v.ID, &payload)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.mode = ModeEditing
		v.log.WithError(err).Error("Failed to save chatbot")
		return nil, err
	}
	if saved.ID == "" {
		saved.ID = v.ID
	}
	normalizeSize(saved)
	v.record = saved
	v.draft = nil
	v.mode = ModeViewing
	return saved, nil
}

// Cancel drops the draft and returns to the last fetched record.
func (v *View) Cancel() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.mode {
	case ModeSaving:
		return ErrSaveInFlight
	case ModeViewing:
		return nil
	}
	v.draft = nil
	v.mode = ModeViewing
	return nil
}

func (v *View) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Record returns a copy of the last fetched or saved record.
func (v *View) Record() *models.Chatbot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.record == nil {
		return nil
	}
	copied := *v.record
	return &copied
}

type DraftState struct {
	Fields   Fields                          `json:"fields"`
	Width    int                             `json:"width"`
	Height   int                             `json:"height"`
	QAPairs  []knowledge.Item[models.QAPair] `json:"qaPairs"`
	Texts    []knowledge.Item[string]        `json:"addedTexts"`
	Websites []knowledge.Item[string]        `json:"addedWebsites"`
	Files    []knowledge.File                `json:"files"`
}

// State is the page as rendered by the console.
type State struct {
	Mode           Mode                   `json:"mode"`
	Chatbot        *models.Chatbot        `json:"chatbot"`
	KnowledgeBases []models.KnowledgeBase `json:"knowledgeBases"`
	Draft          *DraftState            `json:"draft,omitempty"`
	EmbedCode      string                 `json:"embedCode"`
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := State{Mode: v.mode, KnowledgeBases: v.knowledgeBases}
	if v.record == nil {
		return st
	}
	copied := *v.record
	st.Chatbot = &copied

	width, height := v.record.Width, v.record.Height
	if v.draft != nil {
		d := v.draft
		st.Draft = &DraftState{
			Fields:   d.Fields,
			Width:    d.Width,
			Height:   d.Height,
			QAPairs:  d.QAPairs.Items(),
			Texts:    d.Texts.Items(),
			Websites: d.Websites.Items(),
			Files:    d.Files.Files(),
		}
		width, height = d.Width, d.Height
	}
	st.EmbedCode = Snippet(v.opts.Embed, v.ID, width, height)
	return st
}
