package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-class-scheduler/internal/dto"
	"github.com/noah-isme/lms-class-scheduler/internal/models"
	"github.com/noah-isme/lms-class-scheduler/internal/repository"
	"github.com/noah-isme/lms-class-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
	"github.com/noah-isme/lms-class-scheduler/pkg/jobs"
)

// BatchJobKind labels queued scheduling runs.
const BatchJobKind = "scheduling.run"

type studentProgressReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.StudentProgress, error)
}

type learningContentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.LearningContent, error)
}

type timeSlotStore interface {
	ListAvailable(ctx context.Context) ([]models.TimeSlot, error)
	MarkBooked(ctx context.Context, exec sqlx.ExtContext, slots []models.TimeSlot) error
	Release(ctx context.Context, exec sqlx.ExtContext, slotID string, seats int) error
}

type teacherProfileReader interface {
	ListActiveByCourse(ctx context.Context, courseID string) ([]models.TeacherProfile, error)
}

type scheduledClassStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledClass, error)
	ListActive(ctx context.Context) ([]models.ScheduledClass, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, runID string, classes []models.ScheduledClass) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ClassStatus) (*models.ClassStatusChange, error)
}

type schedulingRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.SchedulingRun) error
	LatestByCourse(ctx context.Context, courseID string) (*models.SchedulingRun, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type runCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateCourse(ctx context.Context, courseID string) error
}

type batchEnqueuer interface {
	Enqueue(job jobs.Job[BatchRun]) error
}

// BatchRun is the payload of a queued course run.
type BatchRun struct {
	CourseID string `json:"courseId"`
	Persist  bool   `json:"persist"`
}

// SchedulingConfig carries run defaults.
type SchedulingConfig struct {
	Constraints models.SchedulingConstraints
	Weights     models.SchedulingScoringWeights
	CacheTTL    time.Duration
}

// SchedulingRepositories groups the stores a scheduling service reads and writes.
type SchedulingRepositories struct {
	Progress studentProgressReader
	Content  learningContentReader
	Slots    timeSlotStore
	Teachers teacherProfileReader
	Classes  scheduledClassStore
	Runs     schedulingRunStore
}

// SchedulingService loads course snapshots, runs the scheduler and books the
// result.
type SchedulingService struct {
	repos     SchedulingRepositories
	tx        txProvider
	cache     runCache
	metrics   *MetricsService
	queue     batchEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SchedulingConfig
	opts      scheduler.Options
}

// NewSchedulingService wires the scheduling pipeline. cache and metrics may be nil.
func NewSchedulingService(
	repos SchedulingRepositories,
	tx txProvider,
	cache runCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
	opts scheduler.Options,
) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &SchedulingService{
		repos:     repos,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		opts:      opts,
	}
}

// UseQueue attaches the batch queue. The queue's handler is usually
// HandleBatchJob, so it is wired after construction.
func (s *SchedulingService) UseQueue(queue batchEnqueuer) {
	s.queue = queue
}

// Run schedules one course.
func (s *SchedulingService) Run(ctx context.Context, req dto.RunSchedulingRequest) (*dto.RunSchedulingResponse, error) {
	start := time.Now()
	resp, err := s.run(ctx, req)
	if err != nil {
		s.metrics.ObserveRun(RunOutcomeFailed, time.Since(start), nil, nil)
		s.logger.Warn("scheduling run failed", zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}
	outcome := RunOutcomeScheduled
	if resp.Cached {
		outcome = RunOutcomeCached
	} else {
		s.metrics.ObserveConflicts(resp.Conflicts)
	}
	s.metrics.ObserveRun(outcome, time.Since(start), &resp.Stats, resp.Unscheduled)
	s.logRun(resp, time.Since(start))
	return resp, nil
}

func (s *SchedulingService) run(ctx context.Context, req dto.RunSchedulingRequest) (*dto.RunSchedulingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling run payload")
	}
	constraints, weights := s.resolve(req)
	if err := scheduler.ValidateWeights(weights); err != nil {
		return nil, err
	}

	snapshot, profiles, err := s.loadSnapshot(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	snapshot.Constraints = constraints
	snapshot.Weights = weights

	hash, err := snapshotHash(snapshot, profiles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash scheduling snapshot")
	}

	resp := &dto.RunSchedulingResponse{
		CourseID:     req.CourseID,
		SnapshotHash: hash,
		Constraints:  constraints,
		Weights:      weights,
	}

	var result scheduler.RunResult
	key := RunKey(req.CourseID, hash)
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, key, &result); hit {
			resp.Cached = true
		}
	}
	if !resp.Cached {
		computed, err := scheduler.Run(snapshot, s.opts)
		if err != nil {
			return nil, err
		}
		result = *computed
		if s.cache != nil {
			_ = s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
		}
	}

	resp.Classes = result.Classes
	resp.Unscheduled = result.Unscheduled
	resp.Unassigned = result.Unassigned
	resp.Conflicts = result.Conflicts
	resp.Stats = result.Stats
	resp.GeneratedAt = s.opts.Now()

	if req.Persist {
		runID, err := s.persist(ctx, req.CourseID, hash, &result)
		if err != nil {
			return nil, err
		}
		resp.RunID = runID
		resp.Persisted = true
		if s.cache != nil {
			_ = s.cache.InvalidateCourse(ctx, req.CourseID)
		}
	}
	return resp, nil
}

func (s *SchedulingService) resolve(req dto.RunSchedulingRequest) (models.SchedulingConstraints, models.SchedulingScoringWeights) {
	constraints := s.cfg.Constraints
	if c := req.Constraints; c != nil {
		if c.MaxStudentsPerClass != nil {
			constraints.MaxStudentsPerClass = *c.MaxStudentsPerClass
		}
		if c.MaxConcurrentClassesPerTeacher != nil {
			constraints.MaxConcurrentClassesPerTeacher = *c.MaxConcurrentClassesPerTeacher
		}
		if c.MaxContentPerClass != nil {
			constraints.MaxContentPerClass = *c.MaxContentPerClass
		}
	}
	weights := s.cfg.Weights
	if w := req.Weights; w != nil {
		if w.ContentProgression != nil {
			weights.ContentProgression = *w.ContentProgression
		}
		if w.StudentAvailability != nil {
			weights.StudentAvailability = *w.StudentAvailability
		}
		if w.ClassSizeOptimization != nil {
			weights.ClassSizeOptimization = *w.ClassSizeOptimization
		}
		if w.ScheduleContinuity != nil {
			weights.ScheduleContinuity = *w.ScheduleContinuity
		}
	}
	return constraints, weights
}

func (s *SchedulingService) loadSnapshot(ctx context.Context, courseID string) (scheduler.Snapshot, []models.TeacherProfile, error) {
	snapshot := scheduler.Snapshot{CourseID: courseID}
	var err error

	if snapshot.Students, err = timed(s, "student_progress.list_by_course", func() ([]models.StudentProgress, error) {
		return s.repos.Progress.ListByCourse(ctx, courseID)
	}); err != nil {
		return snapshot, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student progress")
	}
	if snapshot.Catalog, err = timed(s, "learning_content.list_by_course", func() ([]models.LearningContent, error) {
		return s.repos.Content.ListByCourse(ctx, courseID)
	}); err != nil {
		return snapshot, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learning content")
	}
	if snapshot.Slots, err = timed(s, "time_slots.list_available", func() ([]models.TimeSlot, error) {
		return s.repos.Slots.ListAvailable(ctx)
	}); err != nil {
		return snapshot, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	profiles, err := timed(s, "teacher_profiles.list_active", func() ([]models.TeacherProfile, error) {
		return s.repos.Teachers.ListActiveByCourse(ctx, courseID)
	})
	if err != nil {
		return snapshot, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profiles")
	}
	if snapshot.Existing, err = timed(s, "scheduled_classes.list_active", func() ([]models.ScheduledClass, error) {
		return s.repos.Classes.ListActive(ctx)
	}); err != nil {
		return snapshot, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing classes")
	}
	snapshot.Teachers = scheduler.CandidatesFromProfiles(profiles)
	return snapshot, profiles, nil
}

func timed[T any](s *SchedulingService, label string, load func() (T, error)) (T, error) {
	start := time.Now()
	value, err := load()
	s.metrics.ObserveDBQuery(label, time.Since(start))
	return value, err
}

// snapshotHash fingerprints everything that influences a run. Teacher
// candidates are not serialised with the snapshot, so profiles are hashed
// alongside it.
func snapshotHash(snapshot scheduler.Snapshot, profiles []models.TeacherProfile) (string, error) {
	payload, err := json.Marshal(struct {
		Snapshot scheduler.Snapshot      `json:"snapshot"`
		Teachers []models.TeacherProfile `json:"teachers"`
	}{Snapshot: snapshot, Teachers: profiles})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func (s *SchedulingService) persist(ctx context.Context, courseID, hash string, result *scheduler.RunResult) (runID string, err error) {
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	meta, marshalErr := json.Marshal(map[string]any{
		"stats":       result.Stats,
		"unscheduled": result.Unscheduled,
		"unassigned":  result.Unassigned,
	})
	if marshalErr != nil {
		return "", appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("scheduling.persist", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run := &models.SchedulingRun{
		ID:           s.opts.NewID(),
		CourseID:     courseID,
		SnapshotHash: hash,
		Status:       models.SchedulingRunCommitted,
		Meta:         types.JSONText(meta),
		CreatedAt:    s.opts.Now(),
	}
	if err = s.repos.Runs.Create(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record scheduling run")
		return "", err
	}
	if err = s.repos.Classes.BulkCreate(ctx, tx, run.ID, result.Classes); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist scheduled classes")
		return "", err
	}
	booked := make([]models.TimeSlot, 0, len(result.Classes))
	for _, class := range result.Classes {
		booked = append(booked, class.TimeSlot)
	}
	if err = s.repos.Slots.MarkBooked(ctx, tx, booked); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a time slot was booked concurrently; rerun scheduling")
			return "", err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book time slots")
		return "", err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit scheduling run")
		return "", err
	}
	return run.ID, nil
}

func (s *SchedulingService) logRun(resp *dto.RunSchedulingResponse, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("course_id", resp.CourseID),
		zap.String("snapshot_hash", resp.SnapshotHash),
		zap.Bool("cached", resp.Cached),
		zap.Bool("persisted", resp.Persisted),
		zap.Int("classes", resp.Stats.ClassesScheduled),
		zap.Int("unscheduled", resp.Stats.GroupsUnscheduled),
		zap.Int("unassigned", resp.Stats.ClassesUnassigned),
		zap.Int("conflicts", resp.Stats.Conflicts),
		zap.Duration("elapsed", elapsed),
	}
	if resp.RunID != "" {
		fields = append(fields, zap.String("run_id", resp.RunID))
	}
	if resp.Stats.GroupsUnscheduled > 0 || resp.Stats.ClassesUnassigned > 0 || resp.Stats.Conflicts > 0 {
		s.logger.Warn("scheduling run completed with gaps", fields...)
		return
	}
	s.logger.Info("scheduling run completed", fields...)
}

// DetectConflicts scans the persisted schedule of a course. Other courses'
// active classes take part in the scan because teachers and rooms are shared,
// but only conflicts involving the course are reported.
func (s *SchedulingService) DetectConflicts(ctx context.Context, courseID string) (*dto.ConflictsResponse, error) {
	if err := s.validator.Struct(dto.ConflictsQuery{CourseID: courseID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "courseId is required")
	}
	courseClasses, err := timed(s, "scheduled_classes.list_by_course", func() ([]models.ScheduledClass, error) {
		return s.repos.Classes.ListByCourse(ctx, courseID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course schedule")
	}
	active, err := timed(s, "scheduled_classes.list_active", func() ([]models.ScheduledClass, error) {
		return s.repos.Classes.ListActive(ctx)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active schedule")
	}

	latest, err := timed(s, "scheduling_runs.latest_by_course", func() (*models.SchedulingRun, error) {
		return s.repos.Runs.LatestByCourse(ctx, courseID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest scheduling run")
	}

	owned := make(map[string]bool, len(courseClasses))
	for _, class := range courseClasses {
		owned[class.ID] = true
	}
	conflicts := make([]models.SchedulingConflict, 0)
	for _, conflict := range scheduler.DetectConflicts(active, s.opts) {
		for _, id := range conflict.EntityIDs {
			if owned[id] {
				conflicts = append(conflicts, conflict)
				break
			}
		}
	}
	s.metrics.ObserveConflicts(conflicts)
	if len(conflicts) > 0 {
		s.logger.Warn("conflicts found in persisted schedule", zap.String("course_id", courseID), zap.Int("conflicts", len(conflicts)))
	}
	resp := &dto.ConflictsResponse{CourseID: courseID, Classes: len(courseClasses), Conflicts: conflicts}
	if latest != nil {
		resp.LatestRun = &dto.RunSummary{RunID: latest.ID, SnapshotHash: latest.SnapshotHash, CreatedAt: latest.CreatedAt}
	}
	return resp, nil
}

// UpdateClassStatus confirms or cancels a persisted class. Cancelling gives the
// class seats back to its slot in the same transaction. A cancelled class
// cannot be reinstated since its slot may have been booked again.
func (s *SchedulingService) UpdateClassStatus(ctx context.Context, classID string, req dto.UpdateClassStatusRequest) (err error) {
	if classID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class status payload")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	status := models.ClassStatus(req.Status)

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("scheduling.update_status", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	change, err := s.repos.Classes.UpdateStatus(ctx, tx, classID, status)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			err = appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class status")
		return err
	}
	if change.Previous == models.ClassStatusCancelled && status != models.ClassStatusCancelled {
		err = appErrors.Clone(appErrors.ErrConflict, "cancelled classes cannot be reinstated; rerun scheduling")
		return err
	}
	released := status == models.ClassStatusCancelled && change.Previous != models.ClassStatusCancelled
	if released {
		err = s.repos.Slots.Release(ctx, tx, change.TimeSlotID, change.Seats)
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			s.logger.Warn("cancelled class slot no longer exists", zap.String("class_id", classID), zap.String("slot_id", change.TimeSlotID))
			released, err = false, nil
		case err != nil:
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release time slot")
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit class status")
		return err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateCourse(ctx, change.CourseID)
	}
	s.logger.Info("scheduled class status updated",
		zap.String("class_id", classID),
		zap.String("status", req.Status),
		zap.String("previous_status", string(change.Previous)),
		zap.Bool("slot_released", released),
	)
	return nil
}

// EnqueueBatch queues one background run per course.
func (s *SchedulingService) EnqueueBatch(ctx context.Context, req dto.BatchSchedulingRequest) (*dto.BatchSchedulingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch scheduling payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "batch scheduling is disabled")
	}
	resp := &dto.BatchSchedulingResponse{Jobs: make([]dto.BatchJob, 0, len(req.CourseIDs))}
	seen := make(map[string]bool, len(req.CourseIDs))
	for _, courseID := range req.CourseIDs {
		if seen[courseID] {
			continue
		}
		seen[courseID] = true
		if err := ctx.Err(); err != nil {
			return resp, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "batch scheduling cancelled")
		}
		job := jobs.Job[BatchRun]{
			ID:      s.opts.NewID(),
			Kind:    BatchJobKind,
			Payload: BatchRun{CourseID: courseID, Persist: req.Persist},
		}
		if err := s.queue.Enqueue(job); err != nil {
			return resp, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue scheduling run")
		}
		resp.Jobs = append(resp.Jobs, dto.BatchJob{JobID: job.ID, CourseID: courseID})
	}
	s.logger.Info("scheduling batch enqueued", zap.Int("jobs", len(resp.Jobs)), zap.Bool("persist", req.Persist))
	return resp, nil
}

// HandleBatchJob runs a queued course. Client errors are logged and dropped
// since retrying cannot fix them; server errors are returned for retry.
func (s *SchedulingService) HandleBatchJob(ctx context.Context, job jobs.Job[BatchRun]) error {
	_, err := s.Run(ctx, dto.RunSchedulingRequest{CourseID: job.Payload.CourseID, Persist: job.Payload.Persist})
	if err == nil {
		return nil
	}
	if appErr := appErrors.FromError(err); appErr.Status < 500 {
		s.logger.Warn("dropping batch scheduling job", zap.String("job_id", job.ID), zap.String("course_id", job.Payload.CourseID), zap.Error(err))
		return nil
	}
	return err
}
