package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
)

func newSchedulingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestStudentProgressRepositoryListByCourse(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewStudentProgressRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "course_id", "current_unit", "current_lesson", "progress_percentage",
		"completed_content", "unlearned_content", "skill_assessments", "preferred_times", "best_performing_times"}).
		AddRow("s1", "course-1", 2, 1, 42.5, "{intro}", "{c1,c2}", `{"algebra":6}`,
			`[{"day_of_week":"monday","start_time":"09:00","end_time":"10:00"}]`, nil).
		AddRow("s2", "course-1", 2, 1, 40.0, "{}", "{c2}", nil, nil, `[]`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_progress WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	progress, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, []string{"intro"}, progress[0].CompletedContent)
	assert.Equal(t, []string{"c1", "c2"}, progress[0].UnlearnedContent)
	assert.Equal(t, 6.0, progress[0].SkillAssessments["algebra"])
	require.Len(t, progress[0].PreferredTimes, 1)
	assert.Equal(t, "monday", progress[0].PreferredTimes[0].DayOfWeek)
	assert.Empty(t, progress[1].CompletedContent)
	assert.Empty(t, progress[1].SkillAssessments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProgressRepositoryRejectsBadJSON(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewStudentProgressRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "course_id", "current_unit", "current_lesson", "progress_percentage",
		"completed_content", "unlearned_content", "skill_assessments", "preferred_times", "best_performing_times"}).
		AddRow("s1", "course-1", 1, 1, 10.0, "{}", "{}", `{"algebra":`, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_progress")).WillReturnRows(rows)

	_, err := repo.ListByCourse(context.Background(), "course-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill assessments")
}

func TestLearningContentRepositoryListByCourse(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewLearningContentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "unit_number", "lesson_number", "difficulty_level", "prerequisites", "is_required", "estimated_duration"}).
		AddRow("c1", "Fractions", 1, 1, 4.5, "{intro}", true, 60)
	mock.ExpectQuery(regexp.QuoteMeta("FROM learning_content WHERE course_id = $1 ORDER BY unit_number ASC")).
		WithArgs("course-1").
		WillReturnRows(rows)

	catalog, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, models.LearningContent{
		ID: "c1", Title: "Fractions", UnitNumber: 1, LessonNumber: 1, DifficultyLevel: 4.5,
		Prerequisites: []string{"intro"}, IsRequired: true, EstimatedDuration: 60,
	}, catalog[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryListAvailable(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewTimeSlotRepository(db)

	rows := sqlmock.NewRows([]string{"id", "day_of_week", "start_time", "end_time", "duration", "location", "max_students", "available_spots", "is_available"}).
		AddRow("slot-1", "monday", "10:00", "11:00", 60, "room-a", 6, 6, true).
		AddRow("slot-2", "monday", "11:00", "12:00", 60, nil, 4, 2, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM time_slots WHERE is_available = TRUE")).WillReturnRows(rows)

	slots, err := repo.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.NotNil(t, slots[0].Location)
	assert.Equal(t, "room-a", *slots[0].Location)
	assert.Nil(t, slots[1].Location)
	assert.Equal(t, models.SlotCapacity{MaxStudents: 4, AvailableSpots: 2}, slots[1].Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryMarkBooked(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewTimeSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE time_slots SET available_spots = $2, is_available = $3 WHERE id = $1 AND is_available = TRUE")).
		WithArgs("slot-1", 0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE time_slots")).
		WithArgs("slot-2", 3, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkBooked(context.Background(), nil, []models.TimeSlot{
		{ID: "slot-1", Capacity: models.SlotCapacity{AvailableSpots: 0}},
		{ID: "slot-2", Capacity: models.SlotCapacity{AvailableSpots: 3}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherProfileRepositoryListActiveByCourse(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewTeacherProfileRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "course_ids", "preferred_class_type", "feedback_rating", "availability", "active"}).
		AddRow("t-1", "Ana Putri", "{course-1,course-2}", "group", 4.5,
			`[{"day_of_week":"monday","start_time":"08:00","end_time":"16:00"}]`, true).
		AddRow("t-2", "Budi", "{course-1}", nil, 3.0, nil, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_profiles WHERE active = TRUE AND $1 = ANY(course_ids)")).
		WithArgs("course-1").
		WillReturnRows(rows)

	teachers, err := repo.ListActiveByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, models.ClassTypeGroup, teachers[0].PreferredClassType)
	assert.Len(t, teachers[0].Availability, 1)
	assert.Equal(t, []string{"course-1", "course-2"}, teachers[0].CourseIDs)
	assert.Empty(t, teachers[1].PreferredClassType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryBulkCreate(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewScheduledClassRepository(db)
	teacher := "t-1"
	room := "room-a"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduled_classes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduled_classes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.BulkCreate(context.Background(), tx, "run-1", []models.ScheduledClass{
		{
			ID: "class-1", CourseID: "course-1", TeacherID: &teacher, StudentIDs: []string{"s1", "s2"},
			TimeSlot:  models.TimeSlot{ID: "slot-1", DayOfWeek: "monday", StartTime: "10:00", EndTime: "11:00", Duration: 60, Location: &room},
			Content:   []models.LearningContent{{ID: "c1"}},
			ClassType: models.ClassTypeGroup, Status: models.ClassStatusScheduled,
		},
		{
			ID: "class-2", CourseID: "course-1", StudentIDs: []string{"s3"},
			TimeSlot:  models.TimeSlot{ID: "slot-2", DayOfWeek: "tuesday", StartTime: "10:00", EndTime: "11:00", Duration: 60},
			ClassType: models.ClassTypeIndividual, Status: models.ClassStatusScheduled,
		},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryListByCourse(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewScheduledClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "run_id", "course_id", "teacher_id", "student_ids", "time_slot_id", "day_of_week", "start_time", "end_time",
		"duration", "location", "max_students", "content", "class_type", "status", "confidence_score", "rationale", "created_at"}).
		AddRow("class-1", "run-1", "course-1", "t-1", "{s1,s2}", "slot-1", "monday", "10:00", "11:00",
			60, "room-a", 6, `[{"id":"c1","title":"Fractions"}]`, "group", "scheduled", 0.82, "Group class", time.Now()).
		AddRow("class-2", nil, "course-1", nil, "{s3}", "slot-2", "tuesday", "10:00", "11:00",
			60, nil, 4, `[]`, "individual", "cancelled", 0.5, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduled_classes WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	classes, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	require.NotNil(t, classes[0].TeacherID)
	assert.Equal(t, "t-1", *classes[0].TeacherID)
	assert.Equal(t, []string{"s1", "s2"}, classes[0].StudentIDs)
	assert.Equal(t, 6, classes[0].TimeSlot.Capacity.MaxStudents)
	require.Len(t, classes[0].Content, 1)
	assert.Equal(t, "Fractions", classes[0].Content[0].Title)
	assert.Nil(t, classes[1].TeacherID)
	assert.Equal(t, models.ClassStatusCancelled, classes[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryUpdateStatus(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewScheduledClassRepository(db)

	columns := []string{"id", "course_id", "time_slot_id", "seats", "previous_status", "status"}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE scheduled_classes AS c SET status = $2")).
		WithArgs("class-1", "cancelled").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("class-1", "course-1", "slot-1", 4, "scheduled", "cancelled"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	change, err := repo.UpdateStatus(context.Background(), tx, "class-1", models.ClassStatusCancelled)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, models.ClassStatusChange{
		ClassID:    "class-1",
		CourseID:   "course-1",
		TimeSlotID: "slot-1",
		Seats:      4,
		Previous:   models.ClassStatusScheduled,
		Status:     models.ClassStatusCancelled,
	}, *change)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewScheduledClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE scheduled_classes")).
		WithArgs("missing", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "time_slot_id", "seats", "previous_status", "status"}))

	change, err := repo.UpdateStatus(context.Background(), nil, "missing", models.ClassStatusConfirmed)
	assert.Nil(t, change)
	assert.True(t, errors.Is(err, ErrClassNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryRelease(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewTimeSlotRepository(db)

	query := regexp.QuoteMeta("UPDATE time_slots SET available_spots = LEAST(available_spots + $2, max_students), is_available = TRUE WHERE id = $1")
	mock.ExpectExec(query).WithArgs("slot-1", 4).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("slot-1", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("gone", 2).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Release(context.Background(), nil, "slot-1", 4))
	require.NoError(t, repo.Release(context.Background(), nil, "slot-1", -3))
	err := repo.Release(context.Background(), nil, "gone", 2)
	assert.True(t, errors.Is(err, ErrSlotNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedulingRunRepositoryCreate(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewSchedulingRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduling_runs")).
		WithArgs(sqlmock.AnyArg(), "course-1", "abc123", "COMMITTED", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.SchedulingRun{CourseID: "course-1", SnapshotHash: "abc123", Status: models.SchedulingRunCommitted}
	require.NoError(t, repo.Create(context.Background(), nil, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, "{}", string(run.Meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedulingRunRepositoryLatestByCourse(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewSchedulingRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_runs")).
		WithArgs("course-1", "COMMITTED").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "snapshot_hash", "status", "meta", "created_at"}).
			AddRow("run-1", "course-1", "abc", "COMMITTED", `{"classes":2}`, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduling_runs")).
		WithArgs("course-2", "COMMITTED").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "snapshot_hash", "status", "meta", "created_at"}))

	run, err := repo.LatestByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-1", run.ID)

	run, err = repo.LatestByCourse(context.Background(), "course-2")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, "lms:", nil)
	var dest map[string]string

	err := repo.Get(context.Background(), "runs:abc", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "runs:abc", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "runs:*"))
	assert.NoError(t, repo.Ping(context.Background()))
}
