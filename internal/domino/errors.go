package domino

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UpstreamError carries the status to surface to the caller and a message
// safe to show in the UI.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

// StatusOf maps an error to the HTTP status the proxy should return.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status > 0 {
		return ue.Status
	}
	return http.StatusBadGateway
}

const maxErrorChars = 500

// SanitizeError turns an upstream error body into a short message. Full HTML
// error pages are replaced with an explanation; other bodies are truncated.
func SanitizeError(status int, body string) string {
	text := strings.TrimSpace(body)
	if text == "" {
		return fmt.Sprintf("Audit API returned %d", status)
	}
	head := text
	if len(head) > 200 {
		head = head[:200]
	}
	if strings.HasPrefix(text, "<") ||
		strings.Contains(strings.ToLower(head), "<!doctype") ||
		strings.Contains(strings.ToLower(text), "</html>") {
		return fmt.Sprintf("Domino returned %d (HTML page, audit endpoint not found). "+
			"The Audit Trail API may not be enabled or may use a different path on this deployment.", status)
	}
	if r := []rune(text); len(r) > maxErrorChars {
		text = string(r[:maxErrorChars]) + "..."
	}
	return text
}

// ErrorFromResponse builds the UpstreamError for a non-2xx response.
func ErrorFromResponse(resp Response) *UpstreamError {
	return &UpstreamError{Status: resp.Status, Message: SanitizeError(resp.Status, string(resp.Body))}
}
