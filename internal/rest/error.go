package rest

// ErrorResponse is the JSON body returned on request failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
