package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/collabdesk/engine/internal/api/middleware"
	"github.com/collabdesk/engine/internal/api/types"
	"github.com/collabdesk/engine/internal/models"
	"github.com/collabdesk/engine/internal/services"
	"github.com/collabdesk/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type stubCollaboratorService struct{}

func (stubCollaboratorService) Create(ctx context.Context, ownerID uuid.UUID, input *services.CreateCollaboratorInput) (*models.Collaborator, error) {
	return &models.Collaborator{ID: uuid.New(), OwnerID: ownerID, Name: input.Name}, nil
}
func (stubCollaboratorService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error) {
	return nil, nil
}
func (stubCollaboratorService) Update(ctx context.Context, id, actorID uuid.UUID, input *services.UpdateCollaboratorInput) (*models.Collaborator, error) {
	return nil, nil
}
func (stubCollaboratorService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	return nil
}

type stubImportService struct {
	accepted bool
	err      error
	paths    []string
	owners   []uuid.UUID
}

func (s *stubImportService) Enqueue(ctx context.Context, filePath string, ownerID uuid.UUID) (bool, error) {
	s.paths = append(s.paths, filePath)
	s.owners = append(s.owners, ownerID)
	return s.accepted, s.err
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, ownerID uuid.UUID, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/collaborators/upload", body)
	req.Header.Set("Content-Type", contentType)
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, ownerID))
}

func TestCollaboratorsUpload(t *testing.T) {
	ownerID := uuid.New()
	csvBody := []byte("name,email,cpf,city,state\nJoao,joao@example.com,12345678901,Sao Paulo,SP\n")

	t.Run("stores the file and acknowledges the import", func(t *testing.T) {
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		rr := httptest.NewRecorder()
		h.Upload(rr, uploadRequest(t, ownerID, "collabs.csv", csvBody))

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp types.APIResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "accepted", data["status"])

		require.Len(t, imports.paths, 1)
		require.Equal(t, ownerID, imports.owners[0])
		require.FileExists(t, imports.paths[0])
	})

	t.Run("same owner and content map to the same stored path", func(t *testing.T) {
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		h.Upload(httptest.NewRecorder(), uploadRequest(t, ownerID, "first.csv", csvBody))
		h.Upload(httptest.NewRecorder(), uploadRequest(t, ownerID, "second.csv", csvBody))

		require.Len(t, imports.paths, 2)
		require.Equal(t, imports.paths[0], imports.paths[1])
	})

	t.Run("different owners never share a stored path", func(t *testing.T) {
		// Each import run deletes its input file when it finishes, so two
		// owners posting byte-identical content must get distinct files.
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		h.Upload(httptest.NewRecorder(), uploadRequest(t, ownerID, "collabs.csv", csvBody))
		h.Upload(httptest.NewRecorder(), uploadRequest(t, uuid.New(), "collabs.csv", csvBody))

		require.Len(t, imports.paths, 2)
		require.NotEqual(t, imports.paths[0], imports.paths[1])
		require.FileExists(t, imports.paths[0])
		require.FileExists(t, imports.paths[1])
	})

	t.Run("reports a suppressed duplicate as deduped", func(t *testing.T) {
		imports := &stubImportService{accepted: false}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		rr := httptest.NewRecorder()
		h.Upload(rr, uploadRequest(t, ownerID, "collabs.csv", csvBody))

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp types.APIResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "deduped", data["status"])
	})

	t.Run("rejects unsupported extensions", func(t *testing.T) {
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		rr := httptest.NewRecorder()
		h.Upload(rr, uploadRequest(t, ownerID, "collabs.xlsx", csvBody))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Empty(t, imports.paths)
	})

	t.Run("rejects a missing file field", func(t *testing.T) {
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("notes", "no file here"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/collaborators/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rr := httptest.NewRecorder()
		h.Upload(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("removes the stored file when enqueue fails", func(t *testing.T) {
		imports := &stubImportService{err: context.DeadlineExceeded}
		dir := t.TempDir()
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, dir)

		rr := httptest.NewRecorder()
		h.Upload(rr, uploadRequest(t, ownerID, "collabs.csv", csvBody))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries, "orphaned upload must be removed")
	})

	t.Run("rejects bodies over the size cap", func(t *testing.T) {
		imports := &stubImportService{accepted: true}
		h := NewCollaboratorsHandler(stubCollaboratorService{}, imports, t.TempDir())

		big := bytes.Repeat([]byte("a"), maxUploadSize+1)
		rr := httptest.NewRecorder()
		h.Upload(rr, uploadRequest(t, ownerID, "collabs.csv", big))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Empty(t, imports.paths)
	})
}

func TestCollaboratorsDelete_InvalidID(t *testing.T) {
	h := NewCollaboratorsHandler(stubCollaboratorService{}, &stubImportService{}, t.TempDir())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/collaborators/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
