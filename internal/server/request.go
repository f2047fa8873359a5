package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-standings/internal/standings"
)

// standingsRequest carries the /standings query parameters. A request must
// name a channel, explicit usernames, or both.
type standingsRequest struct {
	ContestType string `validate:"required"`
	ContestNo   string `validate:"required"`
	ChannelNo   string `validate:"required_without=Username"`
	Username    string `validate:"required_without=ChannelNo"`
}

// normalize appends the trailing hyphen the contest name format requires.
func (r *standingsRequest) normalize() {
	if r.ContestType != "" && !strings.HasSuffix(r.ContestType, "-") {
		r.ContestType += "-"
	}
}

// validationDetail maps a validator error to the API's detail message.
func (r *standingsRequest) validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "ContestType":
				return "'contestType' is required"
			case "ContestNo":
				return "'contestNo' is required"
			case "ChannelNo", "Username":
				return "Either 'channelNo' or 'username' must be provided"
			}
		}
	}
	return "Invalid request"
}

// obtainedRequest carries the /obtained query parameters.
type obtainedRequest struct {
	Name      string `validate:"required"`
	ChannelNo string `validate:"required_without=Username"`
	Username  string `validate:"required_without=ChannelNo"`
}

func (r *obtainedRequest) validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Name":
				return "Contest name is required"
			case "ChannelNo", "Username":
				return "Either 'channelNo' or 'username' must be provided"
			}
		}
	}
	return "Invalid request"
}

// splitUsernames parses a comma-separated username list, trimming blanks.
func splitUsernames(raw string) []string {
	if raw == "" {
		return nil
	}
	var handles []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			handles = append(handles, trimmed)
		}
	}
	return handles
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(handles []string) []string {
	seen := make(map[string]struct{}, len(handles))
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// standingsResponse is the /standings body. Users is always present, even
// when empty; Error is set only for contest-level failures.
type standingsResponse struct {
	ContestName string                         `json:"contestName"`
	Users       []standings.ParticipantOutcome `json:"users"`
	Error       string                         `json:"error,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type cacheClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Scope   string `json:"scope"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
