package handlers

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabdesk/engine/internal/api/middleware"
	"github.com/collabdesk/engine/internal/api/types"
	"github.com/collabdesk/engine/internal/services"
	"github.com/collabdesk/engine/pkg/logger"
	"github.com/collabdesk/engine/pkg/utils"
)

// maxUploadSize caps import files at 2MB, matching the upload contract.
const maxUploadSize = 2 << 20

type CollaboratorsHandler struct {
	collaborators services.CollaboratorService
	imports       services.ImportService
	uploadDir     string
}

func NewCollaboratorsHandler(collaborators services.CollaboratorService, imports services.ImportService, uploadDir string) *CollaboratorsHandler {
	return &CollaboratorsHandler{collaborators: collaborators, imports: imports, uploadDir: uploadDir}
}

func (h *CollaboratorsHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	items, err := h.collaborators.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items})
}

func (h *CollaboratorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.CreateCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ownerID := middleware.GetUserID(r.Context())
	c, err := h.collaborators.Create(r.Context(), ownerID, &services.CreateCollaboratorInput{
		Name:  req.Name,
		Email: req.Email,
		CPF:   req.CPF,
		City:  req.City,
		State: req.State,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: c})
}

func (h *CollaboratorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid collaborator id")
		return
	}

	var req types.UpdateCollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}

	actorID := middleware.GetUserID(r.Context())
	c, err := h.collaborators.Update(r.Context(), id, actorID, &services.UpdateCollaboratorInput{
		Name:  req.Name,
		Email: req.Email,
		CPF:   req.CPF,
		City:  req.City,
		State: req.State,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: c})
}

func (h *CollaboratorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid collaborator id")
		return
	}

	actorID := middleware.GetUserID(r.Context())
	if err := h.collaborators.Delete(r.Context(), id, actorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

// Upload stores the posted CSV under the upload directory and enqueues an
// asynchronous import run. The response only acknowledges acceptance; row
// outcomes are reported later by email.
func (h *CollaboratorsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "file too large or malformed upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".txt" {
		writeErrorStr(w, http.StatusBadRequest, "only csv and txt files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	ownerID := middleware.GetUserID(r.Context())

	// Content-addressed name scoped to the owner: re-uploading the same file
	// yields the same path (which is what the enqueue dedup window keys on),
	// while identical content from two owners never shares a file, since each
	// import run deletes its input when it finishes.
	sum := utils.SumSHA256(ownerID[:], data)
	path := filepath.Join(h.uploadDir, hex.EncodeToString(sum[:])+".csv")
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeErrorStr(w, http.StatusInternalServerError, "could not store uploaded file")
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		writeErrorStr(w, http.StatusInternalServerError, "could not store uploaded file")
		return
	}

	accepted, err := h.imports.Enqueue(r.Context(), path, ownerID)
	if err != nil {
		// The worker never saw this file; remove it here.
		if rmErr := os.Remove(path); rmErr != nil {
			logger.L().Warn("remove orphaned upload failed", zap.String("path", path), zap.Error(rmErr))
		}
		writeError(w, err)
		return
	}

	if !accepted {
		writeJSON(w, http.StatusAccepted, types.APIResponse{
			Success: true,
			Data:    map[string]any{"status": "deduped", "message": "an identical import is already in progress"},
		})
		return
	}
	writeJSON(w, http.StatusAccepted, types.APIResponse{
		Success: true,
		Data:    map[string]any{"status": "accepted", "message": "import started, you will be notified by email"},
	})
}
