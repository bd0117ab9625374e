package domain

import (
	"encoding/json"
	"fmt"
)

// ReplayResponse is the resolved outcome of a replayed request.
type ReplayResponse struct {
	Status int
	Data   json.RawMessage
}

// ReplayError is the rejection shape of the HTTP collaborator.
// Status is zero for transport failures (timeouts, refused connections).
type ReplayError struct {
	Message string
	Code    string
	Status  int
}

func (e *ReplayError) Error() string {
	switch {
	case e.Status != 0 && e.Code != "":
		return fmt.Sprintf("replay rejected with %d (%s): %s", e.Status, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("replay rejected with %d: %s", e.Status, e.Message)
	case e.Code != "":
		return fmt.Sprintf("replay failed (%s): %s", e.Code, e.Message)
	default:
		return "replay failed: " + e.Message
	}
}
