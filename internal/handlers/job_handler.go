package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fileforge/internal/database"
	"fileforge/internal/repositories"
	"fileforge/internal/utils"
)

// JobHandler implements GET /jobs and GET /jobs/{id} (spec §6).
type JobHandler struct {
	jobs  *repositories.JobRepository
	files *repositories.FileRepository
}

func NewJobHandler(db *database.DB) *JobHandler {
	return &JobHandler{
		jobs:  repositories.NewJobRepository(db),
		files: repositories.NewFileRepository(db),
	}
}

// Get handles GET /jobs/{id}: 404 if absent, 403 if the caller isn't
// the owner of the job's subject file.
func (h *JobHandler) Get(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, "not found", nil)
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to load job", err)
		return
	}
	if job == nil {
		utils.SendError(c, http.StatusNotFound, "not found", nil)
		return
	}
	if job.OwnerID != owner {
		utils.SendError(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	c.JSON(http.StatusOK, job)
}

// List handles GET /jobs: every job whose subject file belongs to the
// caller, across files (there is no files/{id} scoping on this route).
func (h *JobHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	files, err := h.files.ListByOwner(c.Request.Context(), owner, true)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "failed to list files", err)
		return
	}

	result := make([]interface{}, 0)
	for _, f := range files {
		fileJobs, err := h.jobs.ListByFile(c.Request.Context(), f.ID)
		if err != nil {
			utils.SendError(c, http.StatusInternalServerError, "failed to list jobs", err)
			return
		}
		for _, j := range fileJobs {
			result = append(result, j)
		}
	}

	c.JSON(http.StatusOK, result)
}
