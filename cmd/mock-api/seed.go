package main

import (
	"context"

	"github.com/noah-isme/tutor-admin/internal/models"
)

type creator[T models.Entity] interface {
	Create(ctx context.Context, item T) (*T, error)
}

// seed fills the collections with a small, linked data set.
func seed(ctx context.Context, students creator[models.Student], groups creator[models.Group], lessons creator[models.Lesson], feedbacks creator[models.Feedback]) error {
	roster := []models.Student{
		{Fullname: "Alya Putri", Surname: "Putri", Username: "alya", Email: "alya@example.com", PhoneNumber: "+6281200000001", ParentName: "Rina", ParentContact: "+6281300000001", DateOfBirth: models.MustDate("2012-04-18"), IsActive: true},
		{Fullname: "Bima Santoso", Surname: "Santoso", Username: "bima", Email: "bima@example.com", PhoneNumber: "+6281200000002", ParentName: "Joko", IsActive: true},
		{Fullname: "Citra Lestari", Surname: "Lestari", Username: "citra", ParentName: "Dewi", ParentContact: "+6281300000003", DateOfBirth: models.MustDate("2011-11-02"), IsActive: true},
		{Fullname: "Dimas Pratama", Surname: "Pratama", Username: "dimas", IsActive: false},
	}
	ids := make([]int64, 0, len(roster))
	for _, s := range roster {
		created, err := students.Create(ctx, s)
		if err != nil {
			return err
		}
		ids = append(ids, created.ID)
	}

	python, err := groups.Create(ctx, models.Group{
		Name:        "Python Juniors",
		Description: "Saturday morning Python course",
		Type:        models.GroupTypeGroup,
		MeetingLink: "https://meet.example.com/python-juniors",
		IsActive:    true,
		Students:    ids[:3],
	})
	if err != nil {
		return err
	}
	private, err := groups.Create(ctx, models.Group{
		Name:     "Scratch Private",
		Type:     models.GroupTypePrivate,
		IsActive: true,
		Students: ids[3:],
	})
	if err != nil {
		return err
	}

	schedule := []models.Lesson{
		{Title: "Variables and types", Module: "Python 1", Level: "Beginner", Number: 1, DateStart: models.MustDate("2024-02-03"), TimeStart: "09:00", IsActive: true, Group: python.ID, StudentsAttended: ids[:3]},
		{Title: "Loops", Module: "Python 1", Level: "Beginner", Number: 2, DateStart: models.MustDate("2024-02-10"), TimeStart: "09:00", IsActive: true, Group: python.ID, StudentsAttended: ids[:2]},
		{Title: "Sprites", Module: "Scratch 1", Level: "Starter", Number: 1, DateStart: models.MustDate("2024-02-05"), TimeStart: "16:00", IsActive: true, Group: private.ID, StudentsAttended: ids[3:]},
	}
	for _, l := range schedule {
		if _, err := lessons.Create(ctx, l); err != nil {
			return err
		}
	}

	for i, id := range ids[:3] {
		_, err := feedbacks.Create(ctx, models.Feedback{
			Number:        i + 1,
			Topic:         "Loops",
			Result:        "Completed all exercises",
			Competency:    "Iteration",
			TutorFeedback: "Keeps a steady pace and asks good questions.",
			Course:        "Python",
			Level:         "Beginner",
			LessonDate:    models.MustDate("2024-02-29"),
			Group:         python.ID,
			Student:       id,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
