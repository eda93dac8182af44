package models

// APIResponse is the success/failure envelope shared by the relay endpoints.
// Only Message is read by clients on failure.
type APIResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
