package api

type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

const (
	msgTooManyRequests = "Too many requests, please try again later"
	msgInternal        = "Internal server error"
	msgNoteNotFound    = "Note not found"
	msgInvalidNote     = "Title and content are required"
	msgInvalidBody     = "Invalid request body"
	msgNoteDeleted     = "Note deleted successfully"
)
