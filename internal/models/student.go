package models

// Student represents a learner enrolled with the tutoring business.
type Student struct {
	ID            int64  `json:"id"`
	Fullname      string `json:"fullname" validate:"required"`
	Surname       string `json:"surname" validate:"required"`
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password,omitempty"`
	Email         string `json:"email" validate:"omitempty,email"`
	DateOfBirth   Date   `json:"date_of_birth"`
	PhoneNumber   string `json:"phone_number"`
	ParentName    string `json:"parent_name"`
	ParentContact string `json:"parent_contact"`
	IsActive      bool   `json:"is_active"`
}

// EntityID implements Entity.
func (s Student) EntityID() int64 { return s.ID }
