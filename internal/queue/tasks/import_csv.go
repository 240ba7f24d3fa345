package tasks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/collabdesk/engine/internal/mailer"
	"github.com/collabdesk/engine/internal/models"
	"github.com/collabdesk/engine/internal/repository"
	"github.com/collabdesk/engine/internal/services"
	"github.com/collabdesk/engine/pkg/cache"
	appErr "github.com/collabdesk/engine/pkg/errors"
	"github.com/collabdesk/engine/pkg/logger"
)

// ImportPayload is the task payload for collaborator import tasks.
type ImportPayload struct {
	FilePath string `json:"file_path"`
	OwnerID  string `json:"owner_id"`
}

// requiredFields is the exact header field set an import file must carry,
// in any order. Comparison is case-sensitive.
var requiredFields = []string{"name", "email", "cpf", "city", "state"}

var validate = validator.New()

// File-level failure classes. Each aborts the run before any row is touched
// and its message becomes the error notification body.
var (
	errFileUnreadable   = appErr.New(appErr.CodeIO, "the uploaded file could not be read")
	errHeaderUnreadable = appErr.New(appErr.CodeInvalidFormat, "the uploaded file has no readable header")
	errHeaderMismatch   = appErr.New(appErr.CodeInvalidFormat, "invalid csv header: expected the fields name, email, cpf, city, state")
)

// ImportTaskHandler runs the CSV import pipeline. Each run processes rows
// sequentially in file order, accumulates processed/failed/duplicated counts,
// invalidates the owner's list cache, sends exactly one outcome notification,
// and removes the uploaded file on every exit path.
type ImportTaskHandler struct {
	users         repository.UserRepository
	collaborators repository.CollaboratorRepository
	cache         cache.Cache
	mailer        mailer.Mailer
}

func NewImportTaskHandler(users repository.UserRepository, collaborators repository.CollaboratorRepository, c cache.Cache, m mailer.Mailer) *ImportTaskHandler {
	return &ImportTaskHandler{users: users, collaborators: collaborators, cache: c, mailer: m}
}

func (h *ImportTaskHandler) HandleImport(ctx context.Context, t *asynq.Task) error {
	var p ImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid import task payload", zap.Error(err))
		return err
	}
	ownerID, err := uuid.Parse(p.OwnerID)
	if err != nil {
		logger.L().Error("invalid owner id in import task", zap.Error(err))
		return err
	}

	logger.L().Info("handling import task", zap.String("file_path", p.FilePath), zap.String("owner_id", ownerID.String()))

	// The uploaded file belongs to this one run and must be gone when the
	// run ends, whichever branch was taken.
	defer h.removeFile(p.FilePath)

	var owner models.User
	if err := h.users.GetByID(ctx, ownerID, &owner); err != nil {
		// No owner means no notification target; the run ends here.
		logger.L().Error("import owner not found, aborting",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err),
		)
		return nil
	}

	f, err := os.Open(p.FilePath)
	if err != nil {
		logger.L().Error("open import file failed", zap.String("file_path", p.FilePath), zap.Error(appErr.Wrap(err, errFileUnreadable.Code, errFileUnreadable.Message)))
		h.notifyFailure(owner.Email, errFileUnreadable)
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		logger.L().Error("read csv header failed", zap.String("file_path", p.FilePath), zap.Error(appErr.Wrap(err, errHeaderUnreadable.Code, errHeaderUnreadable.Message)))
		h.notifyFailure(owner.Email, errHeaderUnreadable)
		return nil
	}
	if !validHeader(header) {
		logger.L().Error("invalid csv header", zap.Strings("header", header), zap.Error(errHeaderMismatch))
		h.notifyFailure(owner.Email, errHeaderMismatch)
		return nil
	}

	report := h.processRows(ctx, r, header, ownerID)
	report.Timestamp = time.Now()

	if err := h.cache.Invalidate(ctx, services.CollaboratorListKey(ownerID)); err != nil {
		logger.L().Warn("invalidate collaborator list cache failed", zap.String("owner_id", ownerID.String()), zap.Error(err))
	}

	if err := h.mailer.SendImportReport(owner.Email, report); err != nil {
		logger.L().Error("send import report failed", zap.String("email", owner.Email), zap.Error(err))
	}

	logger.L().Info("import task finished",
		zap.String("owner_id", ownerID.String()),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("duplicated", report.Duplicated),
	)
	return nil
}

// processRows folds the data records into an import report. Rows are handled
// strictly in file order, so a row inserted earlier in the same run is visible
// to the duplicate checks of every later row.
func (h *ImportTaskHandler) processRows(ctx context.Context, r *csv.Reader, header []string, ownerID uuid.UUID) mailer.ImportReport {
	var report mailer.ImportReport
	line := 1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, mailer.RowFailure{Line: line, Reason: fmt.Sprintf("malformed csv record: %v", err)})
			continue
		}
		if len(row) != len(header) {
			report.Failed++
			report.Failures = append(report.Failures, mailer.RowFailure{Line: line, Values: row, Reason: "column count does not match header"})
			continue
		}

		rec := zipRecord(header, row)
		switch outcome, reason := h.processRow(ctx, ownerID, rec); outcome {
		case rowInserted:
			report.Processed++
		case rowDuplicate:
			report.Duplicated++
			logger.L().Warn("collaborator already exists", zap.String("email", rec["email"]), zap.Int("line", line))
		case rowInvalid:
			report.Failed++
			report.Failures = append(report.Failures, mailer.RowFailure{Line: line, Values: row, Reason: reason})
			logger.L().Warn("import row rejected", zap.Int("line", line), zap.String("reason", reason))
		}
	}
	return report
}

type rowOutcome int

const (
	rowInserted rowOutcome = iota
	rowInvalid
	rowDuplicate
)

// processRow validates and inserts one assembled record. Each row ends in
// exactly one of the three outcomes.
func (h *ImportTaskHandler) processRow(ctx context.Context, ownerID uuid.UUID, rec map[string]string) (rowOutcome, string) {
	name := rec["name"]
	email := rec["email"]
	cpf := models.NormalizeCPF(rec["cpf"])
	city := rec["city"]
	state := rec["state"]

	if name == "" || len(name) > 255 {
		return rowInvalid, "name must be non-empty and at most 255 characters"
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return rowInvalid, "email is not well-formed"
	}
	if len(cpf) != 11 {
		return rowInvalid, "cpf must have exactly 11 digits"
	}
	if city == "" || len(city) > 255 {
		return rowInvalid, "city must be non-empty and at most 255 characters"
	}
	if len(state) != 2 {
		return rowInvalid, "state must have exactly 2 characters"
	}

	// Both checks go back to the store each time, so inserts from earlier
	// rows of this same file are seen here.
	emailExists, err := h.collaborators.ExistsByEmail(ctx, email)
	if err != nil {
		return rowInvalid, "could not verify email uniqueness"
	}
	if emailExists {
		return rowDuplicate, ""
	}

	cpfExists, err := h.collaborators.ExistsByCPF(ctx, cpf)
	if err != nil {
		return rowInvalid, "could not verify cpf uniqueness"
	}
	if cpfExists {
		return rowInvalid, "cpf already registered"
	}

	c := &models.Collaborator{
		Name:    name,
		Email:   email,
		CPF:     cpf,
		City:    city,
		State:   state,
		OwnerID: ownerID,
	}
	if err := h.collaborators.Create(ctx, c); err != nil {
		// A concurrent insert that wins the race surfaces as a unique
		// violation; treat it like the pre-check's duplicate.
		if appErr.IsCode(err, appErr.CodeConflict) {
			return rowDuplicate, ""
		}
		return rowInvalid, "insert failed"
	}
	return rowInserted, ""
}

// validHeader compares the header as a set: order-independent, case-sensitive,
// no missing and no extra fields.
func validHeader(header []string) bool {
	if len(header) != len(requiredFields) {
		return false
	}
	seen := make(map[string]bool, len(header))
	for _, field := range header {
		seen[field] = true
	}
	for _, field := range requiredFields {
		if !seen[field] {
			return false
		}
	}
	return true
}

func zipRecord(header, row []string) map[string]string {
	rec := make(map[string]string, len(header))
	for i, field := range header {
		rec[field] = row[i]
	}
	return rec
}

func (h *ImportTaskHandler) notifyFailure(email string, ferr *appErr.AppError) {
	if err := h.mailer.SendImportError(email, ferr.Message, time.Now()); err != nil {
		logger.L().Error("send import error notification failed",
			zap.String("email", email),
			zap.String("code", string(ferr.Code)),
			zap.Error(err),
		)
	}
}

func (h *ImportTaskHandler) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.L().Error("remove import file failed", zap.String("file_path", path), zap.Error(err))
		return
	}
	logger.L().Info("import file removed", zap.String("file_path", path))
}
