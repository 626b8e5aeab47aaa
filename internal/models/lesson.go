package models

import "encoding/json"

// Lesson is a scheduled session for a group.
type Lesson struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title" validate:"required"`
	Category         string          `json:"category"`
	Module           string          `json:"module"`
	Level            string          `json:"level"`
	Number           int             `json:"number" validate:"gte=0"`
	Description      string          `json:"description"`
	DateStart        Date            `json:"date_start"`
	TimeStart        string          `json:"time_start"`
	MeetingLink      string          `json:"meeting_link" validate:"omitempty,url"`
	IsActive         bool            `json:"is_active"`
	Group            int64           `json:"group" validate:"required"`
	StudentsAttended []int64         `json:"students_attended"`
	GroupDetails     json.RawMessage `json:"group_details,omitempty"`
}

// EntityID implements Entity.
func (l Lesson) EntityID() int64 { return l.ID }
