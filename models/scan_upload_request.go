package models

// ScanUploadRequest is the body of POST /api/scan-upload. Front and Back are
// data URLs of the captured stills.
type ScanUploadRequest struct {
	Brand string `json:"brand" validate:"required"`
	Email string `json:"email" validate:"required"`
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
	Mode  string `json:"mode"` // "scan" or "balance"
}
