package models

import "encoding/json"

// Group types offered by the business.
const (
	GroupTypeGroup   = "Group"
	GroupTypePrivate = "Private"
)

// Group is a class of students meeting together.
type Group struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	Type           string          `json:"type" validate:"omitempty,oneof=Group Private"`
	MeetingLink    string          `json:"meeting_link" validate:"omitempty,url"`
	RecordingsLink string          `json:"recordings_link" validate:"omitempty,url"`
	IsActive       bool            `json:"is_active"`
	Students       []int64         `json:"students"`
	StudentDetails json.RawMessage `json:"student_details,omitempty"`
}

// EntityID implements Entity.
func (g Group) EntityID() int64 { return g.ID }
