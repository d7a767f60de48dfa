package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// APIResponse is the envelope every route answers with. Callers must check
// Success; Data is null on failure.
type APIResponse struct {
	Data    interface{} `json:"data"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Data:    data,
		Success: true,
		Message: message,
	}
}

func ErrorResponse(message string) APIResponse {
	return APIResponse{
		Data:    nil,
		Success: false,
		Message: message,
	}
}

// WriteJSON encodes body with the given status. Encoding errors are ignored
// because the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse(message))
}

// DecodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
