package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-class-scheduler/internal/dto"
	"github.com/noah-isme/lms-class-scheduler/internal/models"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
	"github.com/noah-isme/lms-class-scheduler/pkg/export"
	"github.com/noah-isme/lms-class-scheduler/pkg/storage"
)

type courseScheduleReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error)
}

type courseConflictScanner interface {
	DetectConflicts(ctx context.Context, courseID string) (*dto.ConflictsResponse, error)
}

type exportStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(ref, path string) (string, time.Time, error)
	Verify(token string) (storage.Claims, error)
}

// ExportConfig tunes export links.
type ExportConfig struct {
	APIPrefix string
	Retention time.Duration
}

// ExportFile is a rendered schedule document.
type ExportFile struct {
	Name   string
	Format export.Format
	Body   []byte
}

// ExportService renders persisted course schedules and their conflicts.
type ExportService struct {
	classes   courseScheduleReader
	conflicts courseConflictScanner
	storage   exportStorage
	signer    downloadSigner
	renderers map[export.Format]export.Renderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil,
// in which case only inline downloads are available.
func NewExportService(classes courseScheduleReader, conflicts courseConflictScanner, store exportStorage, signer downloadSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &ExportService{
		classes:   classes,
		conflicts: conflicts,
		storage:   store,
		signer:    signer,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV: export.NewCSVRenderer(),
			export.FormatPDF: export.NewPDFRenderer(),
		},
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Render builds the schedule document for a course.
func (s *ExportService) Render(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}

	classes, err := s.classes.ListByCourse(ctx, query.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course schedule")
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course has no persisted schedule")
	}
	tables := []export.Table{classTable(classes)}
	if s.conflicts != nil {
		report, err := s.conflicts.DetectConflicts(ctx, query.CourseID)
		if err != nil {
			return nil, err
		}
		tables = append(tables, conflictTable(report.Conflicts))
	}

	title := fmt.Sprintf("Class schedule for %s", query.CourseID)
	body, err := s.renderers[format].Render(title, tables...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Name:   fmt.Sprintf("schedule-%s-%s.%s", safeName(query.CourseID), s.now().Format("20060102-150405"), format),
		Format: format,
		Body:   body,
	}, nil
}

// Publish renders the schedule, stores it and returns a signed download link.
func (s *ExportService) Publish(ctx context.Context, query dto.ExportQuery) (*dto.ExportLinkResponse, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export links are not configured")
	}
	file, err := s.Render(ctx, query)
	if err != nil {
		return nil, err
	}
	stored, err := s.storage.Save(path.Join(safeName(query.CourseID), file.Name), file.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(strings.TrimSuffix(file.Name, "."+string(file.Format)), stored)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	s.logger.Info("schedule export published", zap.String("course_id", query.CourseID), zap.String("file", stored))
	return &dto.ExportLinkResponse{
		URL:       fmt.Sprintf("%s/scheduling/export/files/%s", prefix, token),
		Format:    string(file.Format),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenLink resolves a download token to the stored document.
func (s *ExportService) OpenLink(token string) (*ExportFile, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export links are not configured")
	}
	claims, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export link not found")
	}
	handle, err := s.storage.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	defer handle.Close() //nolint:errcheck
	body, err := io.ReadAll(handle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file")
	}
	format := export.FormatCSV
	if strings.HasSuffix(claims.Path, "."+string(export.FormatPDF)) {
		format = export.FormatPDF
	}
	return &ExportFile{Name: path.Base(claims.Path), Format: format, Body: body}, nil
}

// Cleanup removes stored exports past their retention.
func (s *ExportService) Cleanup() (int, error) {
	if s.storage == nil {
		return 0, nil
	}
	removed, err := s.storage.CleanupOlderThan(s.cfg.Retention)
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("files", len(removed)))
	}
	return len(removed), err
}

func safeName(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)
}

func classTable(classes []models.ScheduledClass) export.Table {
	sorted := make([]models.ScheduledClass, len(classes))
	copy(sorted, classes)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].TimeSlot, sorted[j].TimeSlot
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([]map[string]string, 0, len(sorted))
	for _, class := range sorted {
		titles := make([]string, 0, len(class.Content))
		for _, content := range class.Content {
			title := content.Title
			if title == "" {
				title = content.ID
			}
			titles = append(titles, title)
		}
		teacher := "unassigned"
		if class.TeacherID != nil {
			teacher = *class.TeacherID
		}
		location := "default"
		if class.TimeSlot.Location != nil && *class.TimeSlot.Location != "" {
			location = *class.TimeSlot.Location
		}
		rows = append(rows, map[string]string{
			"id":         class.ID,
			"day":        class.TimeSlot.DayOfWeek,
			"time":       class.TimeSlot.StartTime + "-" + class.TimeSlot.EndTime,
			"location":   location,
			"teacher":    teacher,
			"type":       string(class.ClassType),
			"status":     string(class.Status),
			"students":   strings.Join(class.StudentIDs, " "),
			"content":    strings.Join(titles, "; "),
			"confidence": strconv.FormatFloat(class.ConfidenceScore, 'f', 2, 64),
		})
	}
	return export.Table{
		Title: "Classes",
		Columns: []export.Column{
			{Key: "id", Label: "Class", Width: 2},
			{Key: "day", Label: "Day"},
			{Key: "time", Label: "Time", Width: 1.2},
			{Key: "location", Label: "Location"},
			{Key: "teacher", Label: "Teacher"},
			{Key: "type", Label: "Type"},
			{Key: "status", Label: "Status"},
			{Key: "students", Label: "Students", Width: 2.5},
			{Key: "content", Label: "Content", Width: 3},
			{Key: "confidence", Label: "Confidence", Width: 0.8},
		},
		Rows: rows,
	}
}

func conflictTable(conflicts []models.SchedulingConflict) export.Table {
	rows := make([]map[string]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		suggestion := ""
		if len(conflict.Resolutions) > 0 {
			suggestion = conflict.Resolutions[0].Description
		}
		rows = append(rows, map[string]string{
			"type":        string(conflict.Type),
			"severity":    string(conflict.Severity),
			"classes":     strings.Join(conflict.EntityIDs, " "),
			"description": conflict.Description,
			"suggestion":  suggestion,
		})
	}
	return export.Table{
		Title: "Conflicts",
		Columns: []export.Column{
			{Key: "type", Label: "Type", Width: 1.5},
			{Key: "severity", Label: "Severity"},
			{Key: "classes", Label: "Classes", Width: 2},
			{Key: "description", Label: "Description", Width: 4},
			{Key: "suggestion", Label: "Suggested fix", Width: 4},
		},
		Rows: rows,
	}
}
