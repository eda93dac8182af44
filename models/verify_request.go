package models

// VerifyRequest is the body of POST /api/verify-request
type VerifyRequest struct {
	Brand string `json:"brand" validate:"required"`
	Code  string `json:"code" validate:"required"`
	Email string `json:"email" validate:"required"`
}
