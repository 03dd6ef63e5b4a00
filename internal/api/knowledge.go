package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"chatbot-console/internal/knowledge"
	"chatbot-console/internal/store"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
)

// knowledgeTarget is the set of editors a knowledge route works on: the
// wizard's or the detail view's draft.
type knowledgeTarget struct {
	QAPairs  *knowledge.Collection[models.QAPair]
	Texts    *knowledge.Collection[string]
	Websites *knowledge.Collection[string]
	Files    *knowledge.FileSet
}

// knowledgeRoutes serves the four editors of whichever target resolve
// returns. resolve writes the error response itself when it fails.
type knowledgeRoutes struct {
	deps    *Deps
	resolve func(c *gin.Context) (*knowledgeTarget, bool)
}

func registerKnowledge(g *gin.RouterGroup, k *knowledgeRoutes) {
	g.POST("/qa", k.AddQAPair)
	g.DELETE("/qa/:itemId", k.RemoveQAPair)
	g.POST("/texts", k.AddText)
	g.DELETE("/texts/:itemId", k.RemoveText)
	g.POST("/websites", k.AddWebsite)
	g.DELETE("/websites/:itemId", k.RemoveWebsite)
	g.GET("/files", k.ListFiles)
	g.POST("/files", k.UploadFiles)
	g.DELETE("/files/:itemId", k.RemoveFile)
}

func addItem[T any](c *gin.Context, coll *knowledge.Collection[T], v T) {
	item, err := coll.Add(v)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func removeItem[T any](c *gin.Context, coll *knowledge.Collection[T]) {
	if err := coll.Remove(c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "items": coll.Items()})
}

func (k *knowledgeRoutes) AddQAPair(c *gin.Context) {
	t, ok := k.resolve(c)
	if !ok {
		return
	}
	var pair models.QAPair
	if err := c.ShouldBindJSON(&pair); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addItem(c, t.QAPairs, pair)
}

func (k *knowledgeRoutes) RemoveQAPair(c *gin.Context) {
	if t, ok := k.resolve(c); ok {
		removeItem(c, t.QAPairs)
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func (k *knowledgeRoutes) AddText(c *gin.Context) {
	t, ok := k.resolve(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addItem(c, t.Texts, req.Text)
}

func (k *knowledgeRoutes) RemoveText(c *gin.Context) {
	if t, ok := k.resolve(c); ok {
		removeItem(c, t.Texts)
	}
}

type websiteRequest struct {
	URL string `json:"url"`
}

func (k *knowledgeRoutes) AddWebsite(c *gin.Context) {
	t, ok := k.resolve(c)
	if !ok {
		return
	}
	var req websiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addItem(c, t.Websites, req.URL)
}

func (k *knowledgeRoutes) RemoveWebsite(c *gin.Context) {
	if t, ok := k.resolve(c); ok {
		removeItem(c, t.Websites)
	}
}

type fileStatus struct {
	Files     []knowledge.File `json:"files"`
	Uploaded  int              `json:"uploaded"`
	Uploading int              `json:"uploading"`
	Failed    int              `json:"failed"`
	Limit     int              `json:"limit"`
}

func statusOf(fs *knowledge.FileSet) fileStatus {
	uploaded, uploading, failed := fs.Status()
	return fileStatus{
		Files:     fs.Files(),
		Uploaded:  uploaded,
		Uploading: uploading,
		Failed:    failed,
		Limit:     fs.Limit(),
	}
}

func (k *knowledgeRoutes) ListFiles(c *gin.Context) {
	if t, ok := k.resolve(c); ok {
		c.JSON(http.StatusOK, statusOf(t.Files))
	}
}

func readUpload(fh *multipart.FileHeader) (knowledge.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return knowledge.Upload{}, err
	}
	defer f.Close()

	// one byte past the cap is enough for the size check to reject it
	data, err := io.ReadAll(io.LimitReader(f, knowledge.MaxFileSize+1))
	if err != nil {
		return knowledge.Upload{}, err
	}
	return knowledge.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// UploadFiles accepts a multipart batch under "files" (or a single "file")
// and starts uploading the accepted ones. It answers before the uploads
// finish; progress is pushed over the websocket.
func (k *knowledgeRoutes) UploadFiles(c *gin.Context) {
	t, ok := k.resolve(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	uploads := make([]knowledge.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
			return
		}
		uploads = append(uploads, u)
	}

	ctx := c.Request.Context()
	t.Files.SetTarget(k.deps.n8nConfig(ctx, k.deps.workspace(c)))
	result := t.Files.Select(ctx, uploads)
	c.JSON(http.StatusAccepted, result)
}

func (k *knowledgeRoutes) RemoveFile(c *gin.Context) {
	t, ok := k.resolve(c)
	if !ok {
		return
	}
	if err := t.Files.Remove(c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusOf(t.Files))
}

// n8nConfig returns the user's saved workflow selection, falling back to the
// configured default.
func (d *Deps) n8nConfig(ctx context.Context, w *Workspace) models.N8NConfig {
	cfg := models.N8NConfig{
		WorkflowID: d.Config.Settings.N8N.WorkflowID,
		WebhookURL: d.Config.Settings.N8N.WebhookURL,
	}
	if w == nil {
		return cfg
	}
	var saved models.N8NConfig
	found, err := store.GetInto(ctx, w.Store, store.N8NConfigKey, &saved)
	if err != nil {
		d.Log.WithError(err).Warn("Failed to read n8n config")
		return cfg
	}
	if found {
		return saved
	}
	return cfg
}
