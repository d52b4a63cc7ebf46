package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fileforge/internal/database"
	"fileforge/internal/jobs"
	"fileforge/internal/models"
	"fileforge/internal/repositories"
	"fileforge/internal/storage"
	"fileforge/internal/utils"
)

// FileHandler implements the File endpoints of the REST surface (spec
// §6), generalizing the shape of the teacher's UploadHandler
// (presign/finalize/status) into a single synchronous upload-and-submit
// call, since the spec's upload contract is a direct multipart POST
// rather than a presign/finalize pair.
type FileHandler struct {
	submitter *jobs.Submitter
	store     *storage.Store
	files     *repositories.FileRepository
	jobsRepo  *repositories.JobRepository
	metadata  *repositories.FileMetadataRepository
}

func NewFileHandler(db *database.DB, store *storage.Store, submitter *jobs.Submitter) *FileHandler {
	return &FileHandler{
		submitter: submitter,
		store:     store,
		files:     repositories.NewFileRepository(db),
		jobsRepo:  repositories.NewJobRepository(db),
		metadata:  repositories.NewFileMetadataRepository(db),
	}
}

func ownerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("owner_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// UploadResponse is the success body of POST /files/upload.
type UploadResponse struct {
	Status string    `json:"status"`
	FileID uuid.UUID `json:"file_id"`
}

// Upload handles POST /files/upload: multipart file plus a JSON array
// of action strings naming the pipeline to submit (spec §6, §4.D).
func (h *FileHandler) Upload(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "missing file", err)
		return
	}

	var actionNames []string
	if raw := c.PostForm("pipeline_actions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &actionNames); err != nil {
			utils.SendError(c, http.StatusBadRequest, "invalid pipeline_actions", err)
			return
		}
	}

	actions := make([]jobs.ActionRequest, 0, len(actionNames))
	for _, name := range actionNames {
		kind, ok := models.ParseAction(name)
		if !ok {
			utils.SendError(c, http.StatusBadRequest, fmt.Sprintf("unknown action %q", name), nil)
			return
		}
		actions = append(actions, jobs.ActionRequest{Type: kind})
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to read upload", err)
		return
	}
	defer f.Close()

	result, err := h.submitter.Submit(c.Request.Context(), owner, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), f, fileHeader.Size, "", actions)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "upload failed", err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{Status: "success", FileID: result.File.ID})
}

// FileSummary is the list-view projection of a File.
type FileSummary struct {
	ID           uuid.UUID         `json:"id"`
	OriginalName string            `json:"original_name"`
	Status       models.FileStatus `json:"status"`
	MimeType     string            `json:"mime_type"`
	SizeBytes    int64             `json:"size_bytes"`
	CreatedAt    string            `json:"created_at"`
}

// List handles GET /files.
func (h *FileHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	files, err := h.files.ListByOwner(c.Request.Context(), owner, false)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to list files", err)
		return
	}

	summaries := make([]FileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, FileSummary{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			Status:       f.Status,
			MimeType:     f.MimeType,
			SizeBytes:    f.SizeBytes,
			CreatedAt:    f.CreatedAt.Format(timeLayout),
		})
	}
	c.JSON(http.StatusOK, summaries)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// FileDetail is the response body of GET /files/{id}: the File plus its
// jobs, derived outputs, and ai tags (spec §6).
type FileDetail struct {
	models.File
	Jobs            []models.Job    `json:"jobs"`
	ProcessedOutputs []models.File  `json:"processed_outputs"`
	AITags          []string        `json:"ai_tags,omitempty"`
}

func (h *FileHandler) loadOwned(c *gin.Context) (*models.File, bool) {
	owner, ok := ownerID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "not found", nil)
		return nil, false
	}
	f, err := h.files.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load file", err)
		return nil, false
	}
	if f == nil || f.OwnerID != owner {
		utils.SendError(c, http.StatusNotFound, "not found", nil)
		return nil, false
	}
	return f, true
}

// Get handles GET /files/{id}.
func (h *FileHandler) Get(c *gin.Context) {
	f, ok := h.loadOwned(c)
	if !ok {
		return
	}

	jobRows, err := h.jobsRepo.ListByFile(c.Request.Context(), f.ID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load jobs", err)
		return
	}

	outputs, err := h.files.ListDerived(c.Request.Context(), f.ID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load derived files", err)
		return
	}

	var tags []string
	if meta, err := h.metadata.GetByFileID(c.Request.Context(), f.ID); err == nil && meta != nil {
		tags = meta.AITags
	}

	c.JSON(http.StatusOK, FileDetail{
		File:             *f,
		Jobs:             jobRows,
		ProcessedOutputs: outputs,
		AITags:           tags,
	})
}

// Jobs handles GET /files/{id}/jobs.
func (h *FileHandler) Jobs(c *gin.Context) {
	f, ok := h.loadOwned(c)
	if !ok {
		return
	}
	jobRows, err := h.jobsRepo.ListByFile(c.Request.Context(), f.ID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load jobs", err)
		return
	}
	c.JSON(http.StatusOK, jobRows)
}

// Download handles GET /files/{id}/download: streams the object-store
// bytes with a Content-Disposition naming the original filename.
func (h *FileHandler) Download(c *gin.Context) {
	f, ok := h.loadOwned(c)
	if !ok {
		return
	}

	data, err := h.store.Get(c.Request.Context(), storage.Bucket(f.Bucket), f.Key)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to read object", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.OriginalName))
	c.Data(http.StatusOK, f.MimeType, data)
}

// Delete handles DELETE /files/{id}: removes the File row, every Job
// that references it, every descendant derived File, and their
// object-store keys (spec §8 invariant 5).
func (h *FileHandler) Delete(c *gin.Context) {
	f, ok := h.loadOwned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	derived, err := h.files.ListDerived(ctx, f.ID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load derived files", err)
		return
	}

	tx, err := h.files.DB().BeginTxx(ctx, nil)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to start transaction", err)
		return
	}
	defer tx.Rollback()

	if err := h.jobsRepo.DeleteByFileReference(ctx, tx, f.ID); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to delete jobs", err)
		return
	}
	for _, d := range derived {
		if err := h.files.Delete(ctx, tx, d.ID); err != nil {
			utils.SendError(c, http.StatusInternalServerError, "failed to delete derived file", err)
			return
		}
	}
	if err := h.files.Delete(ctx, tx, f.ID); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to delete file", err)
		return
	}
	if err := tx.Commit(); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to commit delete", err)
		return
	}

	for _, d := range derived {
		if err := h.store.Delete(ctx, storage.Bucket(d.Bucket), d.Key); err != nil {
			utils.SendError(c, http.StatusInternalServerError, "delete committed but object cleanup failed", err)
			return
		}
	}
	if err := h.store.Delete(ctx, storage.Bucket(f.Bucket), f.Key); err != nil {
		utils.SendError(c, http.StatusInternalServerError, "delete committed but object cleanup failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
