package service

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
)

var exportHeaders = []string{"Roll", "Name", "Course", "Date"}

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error)
	StreamExportRows(ctx context.Context, sessionID string, fn func(models.ExportRow) error) error
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error)
}

// AttendanceService reads the attendance ledger and renders exports.
type AttendanceService struct {
	repo     attendanceRepository
	sessions attendanceSessionRepository
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, sessions attendanceSessionRepository, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, sessions: sessions, pdf: export.NewPDFExporter(), logger: logger}
}

// ListBySession returns the attendance rows for a session. Teachers may only
// read their own sessions; admins may read any.
func (s *AttendanceService) ListBySession(ctx context.Context, principal models.Principal, sessionID string) ([]models.AttendanceDetail, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(principal, session); err != nil {
		return nil, err
	}

	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// StreamCSV writes the session's attendance sheet as CSV to w, one row per
// record, ordered by session date then roll number.
func (s *AttendanceService) StreamCSV(ctx context.Context, principal models.Principal, sessionID string, w io.Writer) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.authorize(principal, session); err != nil {
		return err
	}

	return s.streamCSV(ctx, sessionID, w)
}

// StreamLedgerCSV writes the entire attendance ledger as CSV, every session
// included, ordered by session date then roll number. Admin only; role
// enforcement happens at the route.
func (s *AttendanceService) StreamLedgerCSV(ctx context.Context, w io.Writer) error {
	return s.streamCSV(ctx, "", w)
}

// RenderLedgerPDF produces the whole ledger as a PDF document.
func (s *AttendanceService) RenderLedgerPDF(ctx context.Context) ([]byte, error) {
	dataset, err := s.collectRows(ctx, "")
	if err != nil {
		return nil, err
	}
	doc, err := s.pdf.Render(dataset, "Attendance Ledger")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return doc, nil
}

func (s *AttendanceService) streamCSV(ctx context.Context, sessionID string, w io.Writer) error {
	streamer := export.NewCSVStreamer(w)
	if err := streamer.WriteHeader(exportHeaders); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write csv header")
	}
	err := s.repo.StreamExportRows(ctx, sessionID, func(row models.ExportRow) error {
		return streamer.WriteRow([]string{row.Roll, row.Name, row.Course, row.Date.Format("2006-01-02")})
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stream attendance rows")
	}
	if err := streamer.Flush(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flush csv")
	}
	return nil
}

// RenderPDF produces the session's attendance sheet as a PDF document.
func (s *AttendanceService) RenderPDF(ctx context.Context, principal models.Principal, sessionID string) ([]byte, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(principal, session); err != nil {
		return nil, err
	}

	dataset, err := s.collectRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	title := "Attendance " + session.Course + " " + session.Date.Format("2006-01-02")
	doc, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return doc, nil
}

func (s *AttendanceService) collectRows(ctx context.Context, sessionID string) (export.Dataset, error) {
	dataset := export.Dataset{Headers: exportHeaders}
	err := s.repo.StreamExportRows(ctx, sessionID, func(row models.ExportRow) error {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Roll":   row.Roll,
			"Name":   row.Name,
			"Course": row.Course,
			"Date":   row.Date.Format("2006-01-02"),
		})
		return nil
	})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect attendance rows")
	}
	return dataset, nil
}

func (s *AttendanceService) loadSession(ctx context.Context, sessionID string) (*models.ClassSessionDetail, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) authorize(principal models.Principal, session *models.ClassSessionDetail) error {
	if principal.IsAdmin() {
		return nil
	}
	if principal.Role == models.RoleTeacher && session.TeacherUserID == principal.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
}
