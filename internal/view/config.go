package view

import (
	"strconv"
	"time"

	"github.com/noah-isme/tutor-admin/internal/models"
)

// Accessor extracts a comparable value from a record. Supported kinds are
// string, time.Time, bool and the integer and float types.
type Accessor[T any] func(T) interface{}

// Config declares how one entity is searched, sorted and tabulated.
type Config[T any] struct {
	Entity      string
	Columns     []string
	Fields      map[string]Accessor[T]
	Searchable  []string
	Sortable    []string
	DefaultSort SortSpec
}

// CanSort reports whether key is a sortable column.
func (c Config[T]) CanSort(key string) bool {
	for _, k := range c.Sortable {
		if k == key {
			return true
		}
	}
	return false
}

// Row renders the configured columns of item as display strings.
func (c Config[T]) Row(item T) map[string]string {
	row := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		if fn, ok := c.Fields[col]; ok {
			row[col] = Format(fn(item))
		}
	}
	return row
}

// Format renders a field value for tables and exports.
func Format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(models.DateLayout)
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// StudentConfig is the view declaration of the student list.
var StudentConfig = Config[models.Student]{
	Entity:  "student",
	Columns: []string{"id", "fullname", "surname", "username", "email", "phone_number", "parent_name", "is_active"},
	Fields: map[string]Accessor[models.Student]{
		"id":           func(s models.Student) interface{} { return s.ID },
		"fullname":     func(s models.Student) interface{} { return s.Fullname },
		"surname":      func(s models.Student) interface{} { return s.Surname },
		"username":     func(s models.Student) interface{} { return s.Username },
		"email":        func(s models.Student) interface{} { return s.Email },
		"phone_number": func(s models.Student) interface{} { return s.PhoneNumber },
		"parent_name":  func(s models.Student) interface{} { return s.ParentName },
		"is_active":    func(s models.Student) interface{} { return s.IsActive },
	},
	Searchable:  []string{"fullname", "surname", "username"},
	Sortable:    []string{"fullname", "surname", "username"},
	DefaultSort: SortSpec{Key: "fullname", Direction: Ascending},
}

// GroupConfig is the view declaration of the group list.
var GroupConfig = Config[models.Group]{
	Entity:  "group",
	Columns: []string{"id", "name", "type", "description", "is_active"},
	Fields: map[string]Accessor[models.Group]{
		"id":          func(g models.Group) interface{} { return g.ID },
		"name":        func(g models.Group) interface{} { return g.Name },
		"type":        func(g models.Group) interface{} { return g.Type },
		"description": func(g models.Group) interface{} { return g.Description },
		"is_active":   func(g models.Group) interface{} { return g.IsActive },
	},
	Searchable:  []string{"name", "description"},
	Sortable:    []string{"name", "type"},
	DefaultSort: SortSpec{Key: "name", Direction: Ascending},
}

// LessonConfig is the view declaration of the lesson list.
var LessonConfig = Config[models.Lesson]{
	Entity:  "lesson",
	Columns: []string{"id", "title", "module", "level", "number", "date_start", "time_start", "is_active"},
	Fields: map[string]Accessor[models.Lesson]{
		"id":         func(l models.Lesson) interface{} { return l.ID },
		"title":      func(l models.Lesson) interface{} { return l.Title },
		"module":     func(l models.Lesson) interface{} { return l.Module },
		"level":      func(l models.Lesson) interface{} { return l.Level },
		"number":     func(l models.Lesson) interface{} { return l.Number },
		"date_start": func(l models.Lesson) interface{} { return l.DateStart.Time },
		"time_start": func(l models.Lesson) interface{} { return l.TimeStart },
		"is_active":  func(l models.Lesson) interface{} { return l.IsActive },
	},
	Searchable:  []string{"title", "module", "level"},
	Sortable:    []string{"title", "module", "level", "date_start"},
	DefaultSort: SortSpec{Key: "title", Direction: Ascending},
}

// FeedbackConfig is the view declaration of the feedback list.
var FeedbackConfig = Config[models.Feedback]{
	Entity:  "feedback",
	Columns: []string{"id", "number", "topic", "group_name", "student", "course", "level", "lesson_date", "is_sent"},
	Fields: map[string]Accessor[models.Feedback]{
		"id":          func(f models.Feedback) interface{} { return f.ID },
		"number":      func(f models.Feedback) interface{} { return f.Number },
		"topic":       func(f models.Feedback) interface{} { return f.Topic },
		"group_name":  func(f models.Feedback) interface{} { return f.GroupDisplayName() },
		"student":     func(f models.Feedback) interface{} { return f.StudentDisplayName() },
		"course":      func(f models.Feedback) interface{} { return f.Course },
		"level":       func(f models.Feedback) interface{} { return f.Level },
		"lesson_date": func(f models.Feedback) interface{} { return f.LessonDate.Time },
		"is_sent":     func(f models.Feedback) interface{} { return f.IsSent },
	},
	Searchable:  []string{"topic", "group_name"},
	Sortable:    []string{"number", "topic", "course", "level", "lesson_date", "is_sent"},
	DefaultSort: SortSpec{Key: "lesson_date", Direction: Descending},
}
