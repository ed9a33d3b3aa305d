package handler

// SuccessResponse is the 200 body.
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the 4xx/5xx body. Details is only filled by policies that
// expose upstream error text.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
