package api

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
