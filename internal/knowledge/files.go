package knowledge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"chatbot-console/internal/backend"
	"chatbot-console/pkg/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	MaxFileSize = 30 * 1024 * 1024

	WizardFileLimit = 10
	DetailFileLimit = 50

	pdfMIME = "application/pdf"

	uploadConcurrency = 4
)

var (
	ErrUploadInProgress = errors.New("file is still uploading")
	ErrNotPDF           = errors.New("only PDF files are supported")
	ErrFileTooLarge     = errors.New("file exceeds the 30MB limit")
)

type FileState string

const (
	FileUploading FileState = "uploading"
	FileUploaded  FileState = "uploaded"
	FileFailed    FileState = "failed"
)

// File is one entry of a FileSet. FileID stays empty until the upload
// succeeds.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	State       FileState `json:"state"`
	FileID      string    `json:"fileId,omitempty"`
	UploadError string    `json:"uploadError,omitempty"`
	IsExisting  bool      `json:"isExisting"`
	Deletable   bool      `json:"deletable"`
}

// Upload is a file picked by the user.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// SelectResult reports what happened to one picked batch.
type SelectResult struct {
	Accepted []File      `json:"accepted"`
	Rejected []Rejection `json:"rejected,omitempty"`
	Dropped  int         `json:"dropped,omitempty"`
	Notice   string      `json:"notice,omitempty"`
}

type Uploader interface {
	UploadFile(ctx context.Context, f backend.FileUpload) (string, error)
}

// FileSet tracks picked files through their upload.
type FileSet struct {
	mu       sync.Mutex
	files    []File
	limit    int
	policy   DeletePolicy
	uploader Uploader
	target   models.N8NConfig
	log      *logrus.Entry
	inflight sync.WaitGroup

	// OnChange, when set, receives every file that reaches a terminal state.
	OnChange func(File)
}

func NewFileSet(uploader Uploader, limit int, policy DeletePolicy, log *logrus.Entry) *FileSet {
	if limit <= 0 {
		limit = WizardFileLimit
	}
	if policy == "" {
		policy = DeleteBadge
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FileSet{uploader: uploader, limit: limit, policy: policy, log: log}
}

// SetTarget sets the workflow the uploads are attached to.
func (s *FileSet) SetTarget(target models.N8NConfig) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

// Hydrate replaces the set with already uploaded backend file ids. names may
// be nil or shorter than ids.
func (s *FileSet) Hydrate(ids []string, names map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make([]File, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		s.files = append(s.files, File{
			ID:         uuid.NewString(),
			Name:       name,
			State:      FileUploaded,
			FileID:     id,
			IsExisting: true,
		})
	}
}

func checkPDF(u Upload) error {
	declared := strings.EqualFold(strings.TrimSpace(strings.Split(u.ContentType, ";")[0]), pdfMIME) ||
		strings.EqualFold(filepath.Ext(u.Name), ".pdf")
	if !declared || !mimetype.Detect(u.Data).Is(pdfMIME) {
		return ErrNotPDF
	}
	return nil
}

// Select validates a picked batch, adds the accepted files as uploading and
// starts their uploads. Each upload runs independently; a failure only marks
// its own file. Files beyond the cap are dropped with a notice.
func (s *FileSet) Select(ctx context.Context, uploads []Upload) SelectResult {
	var result SelectResult
	var queued []Upload

	s.mu.Lock()
	room := s.limit - len(s.files)
	for _, u := range uploads {
		if err := checkPDF(u); err != nil {
			result.Rejected = append(result.Rejected, Rejection{Name: u.Name, Reason: err.Error()})
			continue
		}
		if len(u.Data) > MaxFileSize {
			result.Rejected = append(result.Rejected, Rejection{Name: u.Name, Reason: ErrFileTooLarge.Error()})
			continue
		}
		if room <= 0 {
			result.Dropped++
			continue
		}
		room--

		f := File{
			ID:        uuid.NewString(),
			Name:      u.Name,
			Size:      int64(len(u.Data)),
			State:     FileUploading,
			Deletable: true,
		}
		s.files = append(s.files, f)
		result.Accepted = append(result.Accepted, f)
		queued = append(queued, u)
	}
	target := s.target
	if len(queued) > 0 {
		s.inflight.Add(1)
	}
	s.mu.Unlock()

	if result.Dropped > 0 {
		result.Notice = fmt.Sprintf("You can upload up to %d files. %d file(s) were not added.", s.limit, result.Dropped)
	}
	if len(queued) == 0 {
		return result
	}

	// Uploads outlive the request that picked the files.
	uploadCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(uploadConcurrency)
	for i, u := range queued {
		id := result.Accepted[i].ID
		g.Go(func() error {
			fileID, err := s.uploader.UploadFile(uploadCtx, backend.FileUpload{
				Name:        u.Name,
				ContentType: pdfMIME,
				Data:        u.Data,
				WorkflowID:  target.WorkflowID,
				WebhookURL:  target.WebhookURL,
			})
			s.finish(id, fileID, err)
			return nil
		})
	}
	go func() {
		defer s.inflight.Done()
		g.Wait()
	}()

	return result
}

func (s *FileSet) finish(id, fileID string, err error) {
	s.mu.Lock()
	var done *File
	for i := range s.files {
		if s.files[i].ID != id {
			continue
		}
		f := &s.files[i]
		if err != nil {
			f.State = FileFailed
			f.UploadError = err.Error()
		} else if fileID == "" {
			f.State = FileFailed
			f.UploadError = "upload returned no file id"
		} else {
			f.State = FileUploaded
			f.FileID = fileID
		}
		copied := *f
		done = &copied
		break
	}
	notify := s.OnChange
	s.mu.Unlock()

	if done == nil {
		// removed while uploading is refused, so only a Hydrate can get here
		return
	}
	if done.State == FileFailed {
		s.log.WithField("file", done.Name).WithError(err).Warn("File upload failed")
	}
	if notify != nil {
		notify(*done)
	}
}

// Wait blocks until every started upload has finished.
func (s *FileSet) Wait() {
	// pairs with the Add made under mu in Select
	s.mu.Lock()
	s.mu.Unlock()
	s.inflight.Wait()
}

// Remove drops a file unless it is uploading or the delete policy protects it.
func (s *FileSet) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.ID != id {
			continue
		}
		if f.State == FileUploading {
			return ErrUploadInProgress
		}
		if f.IsExisting && s.policy == DeleteBlock {
			return ErrExistingItem
		}
		s.files = append(s.files[:i], s.files[i+1:]...)
		return nil
	}
	return ErrNotFound
}

func (s *FileSet) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// FileIDs returns the backend ids of every successfully uploaded file.
func (s *FileSet) FileIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.files))
	for _, f := range s.files {
		if f.State == FileUploaded && f.FileID != "" {
			ids = append(ids, f.FileID)
		}
	}
	return ids
}

// Status counts files per state.
func (s *FileSet) Status() (uploaded, uploading, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		switch f.State {
		case FileUploaded:
			uploaded++
		case FileUploading:
			uploading++
		case FileFailed:
			failed++
		}
	}
	return
}

// Ready reports whether at least one file is uploaded and none is pending or
// failed.
func (s *FileSet) Ready() bool {
	uploaded, uploading, failed := s.Status()
	return uploaded > 0 && uploading == 0 && failed == 0
}

func (s *FileSet) Limit() int {
	return s.limit
}
