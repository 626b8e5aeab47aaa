package models

// DefaultDownloadName is used when the server omits Content-Disposition.
const DefaultDownloadName = "feedbacks.pdf"

// Download is a binary document returned by the backend.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}
