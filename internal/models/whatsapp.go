package models

// WhatsAppDispatch is the acknowledgement returned by the send-whatsapp endpoints.
type WhatsAppDispatch struct {
	Detail    string `json:"detail"`
	Sent      int    `json:"sent"`
	StudentID *int64 `json:"student_id,omitempty"`
}
