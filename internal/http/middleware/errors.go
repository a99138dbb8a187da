package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError mantém o mesmo corpo de erro dos handlers: {"error", "code"}.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
