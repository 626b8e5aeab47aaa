package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type recordLookup[T models.Entity] interface {
	Get(ctx context.Context, id int64) (*T, error)
}

func invalidPK(field string, id int64) error {
	appErr := appErrors.Clone(appErrors.ErrValidation, "Invalid input.")
	appErr.Details = map[string][]string{field: {fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)}}
	return appErr
}

// LinkGroup checks member ids and embeds their details.
func LinkGroup(students recordLookup[models.Student]) func(context.Context, *models.Group) error {
	return func(ctx context.Context, g *models.Group) error {
		details := make([]map[string]interface{}, 0, len(g.Students))
		for _, id := range g.Students {
			s, err := students.Get(ctx, id)
			if err != nil {
				return invalidPK("students", id)
			}
			details = append(details, map[string]interface{}{"id": s.ID, "fullname": s.Fullname})
		}
		if g.Students == nil {
			g.Students = []int64{}
		}
		g.StudentDetails, _ = json.Marshal(details)
		return nil
	}
}

// LinkLesson checks the lesson's group and attendees.
func LinkLesson(groups recordLookup[models.Group], students recordLookup[models.Student]) func(context.Context, *models.Lesson) error {
	return func(ctx context.Context, l *models.Lesson) error {
		group, err := groups.Get(ctx, l.Group)
		if err != nil {
			return invalidPK("group", l.Group)
		}
		for _, id := range l.StudentsAttended {
			if _, err := students.Get(ctx, id); err != nil {
				return invalidPK("students_attended", id)
			}
		}
		if l.StudentsAttended == nil {
			l.StudentsAttended = []int64{}
		}
		l.GroupDetails, _ = json.Marshal(map[string]interface{}{"id": group.ID, "name": group.Name})
		return nil
	}
}

// LinkFeedback checks the feedback's group and student and embeds their names.
func LinkFeedback(groups recordLookup[models.Group], students recordLookup[models.Student]) func(context.Context, *models.Feedback) error {
	return func(ctx context.Context, f *models.Feedback) error {
		group, err := groups.Get(ctx, f.Group)
		if err != nil {
			return invalidPK("group", f.Group)
		}
		f.GroupName = group.Name
		f.GroupDetails, _ = json.Marshal(map[string]interface{}{"id": group.ID, "name": group.Name})
		f.StudentDetails = nil
		if f.Student != 0 {
			student, err := students.Get(ctx, f.Student)
			if err != nil {
				return invalidPK("student", f.Student)
			}
			f.StudentDetails, _ = json.Marshal(map[string]interface{}{"id": student.ID, "fullname": student.Fullname})
		}
		return nil
	}
}
