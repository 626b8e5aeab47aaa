package models

import "encoding/json"

// Feedback is a monthly progress report for one student in a group.
type Feedback struct {
	ID             int64           `json:"id"`
	Number         int             `json:"number" validate:"gte=1"`
	Topic          string          `json:"topic"`
	Result         string          `json:"result"`
	Competency     string          `json:"competency"`
	TutorFeedback  string          `json:"tutor_feedback"`
	Course         string          `json:"course"`
	Level          string          `json:"level"`
	LessonDate     Date            `json:"lesson_date"`
	IsSent         bool            `json:"is_sent"`
	Group          int64           `json:"group" validate:"required"`
	Student        int64           `json:"student,omitempty"`
	GroupName      string          `json:"group_name,omitempty"`
	StudentDetails json.RawMessage `json:"student_details,omitempty"`
	GroupDetails   json.RawMessage `json:"group_details,omitempty"`
}

// EntityID implements Entity.
func (f Feedback) EntityID() int64 { return f.ID }

// GroupDisplayName prefers the embedded group details over the flat group_name.
func (f Feedback) GroupDisplayName() string {
	if name := detailString(f.GroupDetails, "name"); name != "" {
		return name
	}
	return f.GroupName
}

// StudentDisplayName reads the student's fullname from the embedded details.
func (f Feedback) StudentDisplayName() string {
	return detailString(f.StudentDetails, "fullname")
}

func detailString(raw json.RawMessage, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
