package view

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-admin/internal/models"
)

func students() []models.Student {
	return []models.Student{
		{ID: 1, Fullname: "Charlie Day", Surname: "Day", Username: "cday"},
		{ID: 2, Fullname: "Ann Lee", Surname: "Lee", Username: "alee"},
		{ID: 3, Fullname: "Bob Stone", Surname: "Stone", Username: "bob"},
		{ID: 4, Fullname: "Ann Lee", Surname: "Marsh", Username: "ann2"},
		{ID: 5, Fullname: "Dana Joannes", Surname: "Joannes", Username: "dj"},
	}
}

func studentIDs(items []models.Student) []int64 {
	out := make([]int64, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}

func TestFilterEmptyTermIsIdentity(t *testing.T) {
	src := students()
	out := Filter(src, StudentConfig, "")
	assert.Equal(t, src, out)

	out[0].Fullname = "changed"
	assert.Equal(t, "Charlie Day", src[0].Fullname)
}

func TestFilterMatchesAnySearchableFieldCaseInsensitive(t *testing.T) {
	out := Filter(students(), StudentConfig, "ANN")
	assert.Equal(t, []int64{2, 4, 5}, studentIDs(out))

	out = Filter(students(), StudentConfig, "stone")
	assert.Equal(t, []int64{3}, studentIDs(out))

	out = Filter(students(), StudentConfig, "zzz")
	assert.Empty(t, out)
}

func TestFilterKeepsWhitespaceInTerm(t *testing.T) {
	out := Filter(students(), StudentConfig, "ann ")
	assert.Equal(t, []int64{2, 4}, studentIDs(out))

	out = Filter(students(), StudentConfig, "  ")
	assert.Empty(t, out)
}

func TestSortIsStableAndDoesNotMutate(t *testing.T) {
	src := students()
	sorted := Sort(src, StudentConfig, SortSpec{Key: "fullname", Direction: Ascending})
	assert.Equal(t, []int64{2, 4, 3, 1, 5}, studentIDs(sorted))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, studentIDs(src))

	desc := Sort(src, StudentConfig, SortSpec{Key: "fullname", Direction: Descending})
	assert.Equal(t, []int64{5, 1, 3, 2, 4}, studentIDs(desc))
}

func TestSortIsIdempotentAndToggleRoundTrips(t *testing.T) {
	spec := StudentConfig.DefaultSort
	once := Sort(students(), StudentConfig, spec)
	twice := Sort(once, StudentConfig, spec)
	assert.Equal(t, once, twice)

	toggled := spec.Toggle("fullname").Toggle("fullname")
	assert.Equal(t, spec, toggled)
	assert.Equal(t, once, Sort(students(), StudentConfig, toggled))
}

func TestToggleResetsForNewKey(t *testing.T) {
	spec := SortSpec{Key: "name", Direction: Ascending}
	spec = spec.Toggle("name")
	assert.Equal(t, Descending, spec.Direction)
	spec = spec.Toggle("type")
	assert.Equal(t, SortSpec{Key: "type", Direction: Ascending}, spec)
}

func TestSortNaturalOrderPerKind(t *testing.T) {
	feedbacks := []models.Feedback{
		{ID: 1, Number: 10, IsSent: true, LessonDate: models.MustDate("2024-03-01")},
		{ID: 2, Number: 2, IsSent: false, LessonDate: models.MustDate("2024-01-15")},
		{ID: 3, Number: 33, IsSent: true, LessonDate: models.MustDate("2024-02-10")},
		{ID: 4, Number: 2, IsSent: false},
	}
	ids := func(items []models.Feedback) []int64 {
		out := []int64{}
		for _, f := range items {
			out = append(out, f.ID)
		}
		return out
	}

	assert.Equal(t, []int64{2, 4, 1, 3}, ids(Sort(feedbacks, FeedbackConfig, SortSpec{Key: "number"})))
	assert.Equal(t, []int64{2, 4, 1, 3}, ids(Sort(feedbacks, FeedbackConfig, SortSpec{Key: "is_sent"})))
	assert.Equal(t, []int64{4, 2, 3, 1}, ids(Sort(feedbacks, FeedbackConfig, SortSpec{Key: "lesson_date"})))
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(Sort(feedbacks, FeedbackConfig, FeedbackConfig.DefaultSort)))
}

func TestFeedbackSearchUsesGroupDetails(t *testing.T) {
	feedbacks := []models.Feedback{
		{ID: 1, Topic: "Loops", GroupDetails: json.RawMessage(`{"name":"Python Juniors"}`)},
		{ID: 2, Topic: "Sprites", GroupName: "Scratch Kids"},
		{ID: 3, Topic: "Variables in python"},
	}
	out := Filter(feedbacks, FeedbackConfig, "python")
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)

	out = Filter(feedbacks, FeedbackConfig, "kids")
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestViewRecomputesOnChange(t *testing.T) {
	v := New(StudentConfig)
	var projections [][]models.Student
	v.OnChange(func(items []models.Student) { projections = append(projections, items) })

	v.SetSource(students())
	assert.Equal(t, []int64{2, 4, 3, 1, 5}, studentIDs(v.Projection()))

	v.SetTerm("ann")
	assert.Equal(t, []int64{2, 4, 5}, studentIDs(v.Projection()))

	spec, err := v.ToggleSort("fullname")
	require.NoError(t, err)
	assert.Equal(t, Descending, spec.Direction)
	assert.Equal(t, []int64{5, 2, 4}, studentIDs(v.Projection()))

	_, err = v.ToggleSort("email")
	require.Error(t, err)
	assert.Len(t, projections, 3)
}

func TestRowFormatsColumns(t *testing.T) {
	row := LessonConfig.Row(models.Lesson{ID: 9, Title: "Intro", Number: 3, DateStart: models.MustDate("2024-05-02"), IsActive: true})
	assert.Equal(t, "9", row["id"])
	assert.Equal(t, "3", row["number"])
	assert.Equal(t, "2024-05-02", row["date_start"])
	assert.Equal(t, "yes", row["is_active"])
	assert.Equal(t, "", row["module"])
}

func TestDebouncerAppliesOnlyLastValue(t *testing.T) {
	var mu sync.Mutex
	var applied []string
	d := NewDebouncer(0, func(v string) {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, v)
	})
	defer d.Stop()

	for _, term := range []string{"a", "an", "ann"} {
		d.Push(term)
		time.Sleep(30 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(2 * DefaultDebounce)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ann"}, applied)
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	called := make(chan string, 1)
	d := NewDebouncer(20*time.Millisecond, func(v string) { called <- v })
	d.Push("x")
	d.Stop()
	d.Push("y")

	select {
	case v := <-called:
		t.Fatalf("unexpected application of %q", v)
	case <-time.After(100 * time.Millisecond):
	}
}
