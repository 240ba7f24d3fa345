package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/collabdesk/engine/internal/mailer"
	"github.com/collabdesk/engine/internal/models"
	"github.com/collabdesk/engine/internal/services"
	"github.com/collabdesk/engine/pkg/cache"
	appErr "github.com/collabdesk/engine/pkg/errors"
	"github.com/collabdesk/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by tasks)
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Stateful fakes: the pipeline's sequential-visibility semantics (row N sees
// inserts from rows < N) need a store that remembers inserts within one run.

type fakeUserRepo struct {
	users map[uuid.UUID]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, obj *models.User) error { return nil }
func (r *fakeUserRepo) GetByID(ctx context.Context, id any, dest *models.User) error {
	uid, ok := id.(uuid.UUID)
	if !ok {
		return appErr.New(appErr.CodeInvalid, "bad id")
	}
	u, ok := r.users[uid]
	if !ok {
		return appErr.New(appErr.CodeNotFound, "user not found")
	}
	*dest = u
	return nil
}
func (r *fakeUserRepo) Update(ctx context.Context, obj *models.User) error { return nil }
func (r *fakeUserRepo) Delete(ctx context.Context, id any) error           { return nil }
func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	return appErr.New(appErr.CodeNotFound, "user not found")
}
func (r *fakeUserRepo) List(ctx context.Context) ([]models.User, error) { return nil, nil }

type fakeCollaboratorRepo struct {
	byEmail map[string]models.Collaborator
	byCPF   map[string]bool
	// conflictEmails simulates a concurrent insert winning the race: the
	// existence pre-check misses, but Create hits the unique constraint.
	conflictEmails map[string]bool
	created        []models.Collaborator
}

func newFakeCollaboratorRepo() *fakeCollaboratorRepo {
	return &fakeCollaboratorRepo{
		byEmail:        map[string]models.Collaborator{},
		byCPF:          map[string]bool{},
		conflictEmails: map[string]bool{},
	}
}

func (r *fakeCollaboratorRepo) Create(ctx context.Context, obj *models.Collaborator) error {
	if r.conflictEmails[obj.Email] || r.byEmail[obj.Email].Email != "" || r.byCPF[obj.CPF] {
		return appErr.New(appErr.CodeConflict, "entity already exists")
	}
	obj.ID = uuid.New()
	r.byEmail[obj.Email] = *obj
	r.byCPF[obj.CPF] = true
	r.created = append(r.created, *obj)
	return nil
}
func (r *fakeCollaboratorRepo) GetByID(ctx context.Context, id any, dest *models.Collaborator) error {
	return appErr.New(appErr.CodeNotFound, "collaborator not found")
}
func (r *fakeCollaboratorRepo) Update(ctx context.Context, obj *models.Collaborator) error {
	return nil
}
func (r *fakeCollaboratorRepo) Delete(ctx context.Context, id any) error { return nil }
func (r *fakeCollaboratorRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error) {
	return nil, nil
}
func (r *fakeCollaboratorRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}
func (r *fakeCollaboratorRepo) ExistsByCPF(ctx context.Context, cpf string) (bool, error) {
	return r.byCPF[cpf], nil
}
func (r *fakeCollaboratorRepo) ExistsByEmailOrCPF(ctx context.Context, email, cpf string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok || r.byCPF[cpf], nil
}

type fakeMailer struct {
	reports []mailer.ImportReport
	errors  []string
}

func (m *fakeMailer) SendImportReport(to string, report mailer.ImportReport) error {
	m.reports = append(m.reports, report)
	return nil
}
func (m *fakeMailer) SendImportError(to string, message string, timestamp time.Time) error {
	m.errors = append(m.errors, message)
	return nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func importTask(t *testing.T, filePath string, ownerID uuid.UUID) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(ImportPayload{FilePath: filePath, OwnerID: ownerID.String()})
	require.NoError(t, err)
	return asynq.NewTask(services.TypeCollaboratorImport, payload)
}

type importFixture struct {
	owner   models.User
	users   *fakeUserRepo
	repo    *fakeCollaboratorRepo
	cache   *cache.MemoryCache
	mail    *fakeMailer
	handler *ImportTaskHandler
}

func newImportFixture() *importFixture {
	owner := models.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}
	users := newFakeUserRepo(owner)
	repo := newFakeCollaboratorRepo()
	mem := cache.NewMemoryCache()
	mail := &fakeMailer{}
	return &importFixture{
		owner:   owner,
		users:   users,
		repo:    repo,
		cache:   mem,
		mail:    mail,
		handler: NewImportTaskHandler(users, repo, mem, mail),
	}
}

// warmCache plants an entry under the owner's list key so invalidation is observable.
func (f *importFixture) warmCache(t *testing.T) string {
	t.Helper()
	key := services.CollaboratorListKey(f.owner.ID)
	_, err := f.cache.GetOrCompute(context.Background(), key, time.Minute, func(ctx context.Context) ([]byte, error) {
		return []byte("[]"), nil
	})
	require.NoError(t, err)
	require.True(t, f.cache.Has(key))
	return key
}

func TestHandleImport_AllValidRows(t *testing.T) {
	f := newImportFixture()
	key := f.warmCache(t)

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo,SP\n"+
		"Maria Souza,maria@example.com,23456789012,Recife,PE\n"+
		"Pedro Lima,pedro@example.com,34567890123,Curitiba,PR\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 3, report.Processed)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 0, report.Duplicated)
	require.False(t, report.Timestamp.IsZero())
	require.Empty(t, f.mail.errors)

	require.Len(t, f.repo.created, 3)
	for _, c := range f.repo.created {
		require.Equal(t, f.owner.ID, c.OwnerID)
	}

	require.False(t, f.cache.Has(key), "owner list cache should be invalidated")
	require.NoFileExists(t, path)
}

func TestHandleImport_HeaderOrderIndependent(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "email,name,cpf,state,city\n"+
		"joao@example.com,Joao Silva,12345678901,SP,Sao Paulo\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	require.Equal(t, 1, f.mail.reports[0].Processed)
	require.Len(t, f.repo.created, 1)
	created := f.repo.created[0]
	require.Equal(t, "Joao Silva", created.Name)
	require.Equal(t, "joao@example.com", created.Email)
	require.Equal(t, "Sao Paulo", created.City)
	require.Equal(t, "SP", created.State)
}

func TestHandleImport_MissingHeaderField(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Empty(t, f.repo.created, "no rows may be inserted on header failure")
	require.Empty(t, f.mail.reports)
	require.Len(t, f.mail.errors, 1, "exactly one error notification")
	require.Equal(t, errHeaderMismatch.Message, f.mail.errors[0])
	require.True(t, appErr.IsCode(errHeaderMismatch, appErr.CodeInvalidFormat))
	require.NoFileExists(t, path, "temp file removed even on format failure")
}

func TestHandleImport_IntraFileDuplicateEmail(t *testing.T) {
	f := newImportFixture()

	// Row 3 repeats row 1's email; row 1's insert is already visible.
	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo,SP\n"+
		"Maria Souza,maria@example.com,23456789012,Recife,PE\n"+
		"Joao Clone,joao@example.com,34567890123,Curitiba,PR\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 1, report.Duplicated)
}

func TestHandleImport_BadCPFCountsAsFailure(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,1234567890,Sao Paulo,SP\n"+
		"Maria Souza,maria@example.com,23456789012,Recife,PE\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 0, report.Duplicated)
	require.Len(t, report.Failures, 1)
	require.Equal(t, 2, report.Failures[0].Line)
	require.Contains(t, report.Failures[0].Reason, "cpf")
}

func TestHandleImport_ColumnCountMismatch(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901\n"+
		"Maria Souza,maria@example.com,23456789012,Recife,PE\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 1, report.Failed)
}

func TestHandleImport_EmptyFileIsSuccess(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city,state\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 0, report.Processed)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 0, report.Duplicated)
	require.Empty(t, f.mail.errors)
	require.NoFileExists(t, path)
}

func TestHandleImport_UnreadableFile(t *testing.T) {
	f := newImportFixture()

	path := filepath.Join(t.TempDir(), "missing.csv")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Empty(t, f.mail.reports)
	require.Len(t, f.mail.errors, 1)
	require.Equal(t, errFileUnreadable.Message, f.mail.errors[0])
	require.True(t, appErr.IsCode(errFileUnreadable, appErr.CodeIO))
}

func TestHandleImport_UnknownOwnerAbortsSilently(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo,SP\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, uuid.New()))
	require.NoError(t, err)

	require.Empty(t, f.mail.reports)
	require.Empty(t, f.mail.errors)
	require.Empty(t, f.repo.created)
	require.NoFileExists(t, path, "temp file removed even without a notification target")
}

func TestHandleImport_StoredCPFDuplicateFailsRow(t *testing.T) {
	f := newImportFixture()
	f.repo.byCPF["12345678901"] = true

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo,SP\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 0, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Contains(t, report.Failures[0].Reason, "cpf already registered")
}

func TestHandleImport_InsertRaceCountsAsDuplicate(t *testing.T) {
	f := newImportFixture()
	f.repo.conflictEmails["joao@example.com"] = true

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,12345678901,Sao Paulo,SP\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.mail.reports, 1)
	report := f.mail.reports[0]
	require.Equal(t, 0, report.Processed)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 1, report.Duplicated)
}

func TestHandleImport_CPFNormalization(t *testing.T) {
	f := newImportFixture()

	path := writeCSV(t, "name,email,cpf,city,state\n"+
		"Joao Silva,joao@example.com,123.456.789-01,Sao Paulo,SP\n")

	err := f.handler.HandleImport(context.Background(), importTask(t, path, f.owner.ID))
	require.NoError(t, err)

	require.Len(t, f.repo.created, 1)
	require.Equal(t, "12345678901", f.repo.created[0].CPF)
}
