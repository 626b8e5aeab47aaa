package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/repository"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type testBackend struct {
	studentRepo  *repository.Collection[models.Student]
	feedbackRepo *repository.Collection[models.Feedback]
	students     *RecordService[models.Student]
	groups       *RecordService[models.Group]
	lessons      *RecordService[models.Lesson]
	feedbacks    *RecordService[models.Feedback]
}

func newTestBackend() *testBackend {
	b := &testBackend{
		studentRepo:  repository.NewCollection(func(s *models.Student, id int64) { s.ID = id }, repository.OldestFirst),
		feedbackRepo: repository.NewCollection(func(f *models.Feedback, id int64) { f.ID = id }, repository.NewestFirst),
	}
	groupRepo := repository.NewCollection(func(g *models.Group, id int64) { g.ID = id }, repository.NewestFirst)
	lessonRepo := repository.NewCollection(func(l *models.Lesson, id int64) { l.ID = id }, repository.NewestFirst)

	validate := NewValidator()
	b.students = NewRecordService[models.Student]("students", b.studentRepo, validate, nil, nil)
	b.groups = NewRecordService[models.Group]("groups", groupRepo, validate, nil, LinkGroup(b.students))
	b.lessons = NewRecordService[models.Lesson]("lessons", lessonRepo, validate, nil, LinkLesson(b.groups, b.students))
	b.feedbacks = NewRecordService[models.Feedback]("feedbacks", b.feedbackRepo, validate, nil, LinkFeedback(b.groups, b.students))
	return b
}

func (b *testBackend) addStudent(t *testing.T, name, phone string) *models.Student {
	t.Helper()
	s, err := b.students.Create(context.Background(), models.Student{Fullname: name, Surname: name, Username: name, PhoneNumber: phone})
	require.NoError(t, err)
	return s
}

func TestRecordServiceListPaging(t *testing.T) {
	b := newTestBackend()
	ctx := context.Background()
	for _, name := range []string{"ann", "bob", "cid"} {
		b.addStudent(t, name, "")
	}

	page, err := b.students.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.True(t, page.HasNext)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "ann", page.Results[0].Fullname)

	page, err = b.students.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.False(t, page.HasNext)
	require.Len(t, page.Results, 1)

	_, err = b.students.List(ctx, 3, 2)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.StatusOf(err))
}

func TestRecordServiceValidationDetails(t *testing.T) {
	b := newTestBackend()

	_, err := b.students.Create(context.Background(), models.Student{Email: "broken"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.CodeValidation, appErr.Code)
	details, ok := appErr.Details.(map[string][]string)
	require.True(t, ok)
	assert.Equal(t, []string{"This field is required."}, details["fullname"])
	assert.Equal(t, []string{"Enter a valid email address."}, details["email"])
}

func TestRecordServiceLinksRelations(t *testing.T) {
	b := newTestBackend()
	ctx := context.Background()
	ann := b.addStudent(t, "ann", "")

	_, err := b.groups.Create(ctx, models.Group{Name: "Python", Students: []int64{ann.ID, 99}})
	require.Error(t, err)
	details := appErrors.FromError(err).Details.(map[string][]string)
	assert.Contains(t, details["students"][0], `"99"`)

	group, err := b.groups.Create(ctx, models.Group{Name: "Python", Students: []int64{ann.ID}})
	require.NoError(t, err)
	var members []map[string]interface{}
	require.NoError(t, json.Unmarshal(group.StudentDetails, &members))
	require.Len(t, members, 1)
	assert.Equal(t, "ann", members[0]["fullname"])

	fb, err := b.feedbacks.Create(ctx, models.Feedback{Number: 1, Group: group.ID, Student: ann.ID})
	require.NoError(t, err)
	assert.Equal(t, "Python", fb.GroupName)
	assert.Equal(t, "ann", fb.StudentDisplayName())

	_, err = b.lessons.Create(ctx, models.Lesson{Title: "Intro", Group: 42})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeValidation))
}

func TestRecordServiceUpdateAndDeleteMissing(t *testing.T) {
	b := newTestBackend()
	ctx := context.Background()

	_, err := b.students.Update(ctx, 7, models.Student{Fullname: "x", Surname: "x", Username: "x"})
	assert.Equal(t, 404, appErrors.StatusOf(err))
	assert.Equal(t, 404, appErrors.StatusOf(b.students.Delete(ctx, 7)))

	ann := b.addStudent(t, "ann", "")
	updated, err := b.students.Update(ctx, ann.ID, models.Student{Fullname: "Ann B", Surname: "B", Username: "ann"})
	require.NoError(t, err)
	assert.Equal(t, ann.ID, updated.ID)
	assert.Equal(t, "Ann B", updated.Fullname)
}

func TestRecordServiceImportReportsRowErrors(t *testing.T) {
	b := newTestBackend()
	ctx := context.Background()
	existing := b.addStudent(t, "ann", "")

	records := []models.ImportRecord{
		{"fullname": "Bob", "surname": "B", "username": "bob", "is_active": "yes", "date_of_birth": "2010-05-01"},
		{"fullname": "Cid", "surname": "C", "username": "cid", "date_of_birth": "01/05/2010"},
		{"surname": "D", "username": "dan"},
		{"id": "1", "fullname": "Ann Updated", "surname": "A", "username": "ann"},
	}
	result := b.students.Import(ctx, records)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, string(result.Errors[0].Errors), "date_of_birth")
	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Contains(t, string(result.Errors[1].Errors), "fullname")

	got, err := b.students.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Updated", got.Fullname)

	all, err := b.students.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].IsActive)
	assert.Equal(t, "2010-05-01", all[1].DateOfBirth.String())
}

func TestDecodeImportRecordCoercesValues(t *testing.T) {
	group, errs := DecodeImportRecord[models.Group](models.ImportRecord{
		"name":     " Robotics ",
		"students": "1; 2,3",
		"ignored":  "x",
	})
	require.Empty(t, errs)
	assert.Equal(t, "Robotics", group.Name)
	assert.Equal(t, []int64{1, 2, 3}, group.Students)

	_, errs = DecodeImportRecord[models.Lesson](models.ImportRecord{"number": "two", "is_active": "maybe"})
	assert.Equal(t, []string{"A valid integer is required."}, errs["number"])
	assert.Equal(t, []string{"Must be a valid boolean."}, errs["is_active"])
}
