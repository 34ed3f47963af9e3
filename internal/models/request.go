package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"teams-notify-api/internal/apperrors"
)

// Mode selects which business operation an invocation performs.
type Mode int

const (
	ModeDirectMessage  Mode = 1
	ModeChannelMessage Mode = 2
	ModeRefreshToken   Mode = 3
)

// Mention is a user mention attached to a message. The mentioned user is
// identified by email address and resolved against the directory before
// sending.
type Mention struct {
	MentionType  string `json:"mention_type" validate:"omitempty,oneof=user"`
	EmailAddress string `json:"email_address" validate:"required,email"`
}

// DirectMessageRequest sends the same message to each recipient's
// one-on-one chat (mode 1).
type DirectMessageRequest struct {
	Mode           Mode      `json:"mode" validate:"required,eq=1"`
	EmailAddresses []string  `json:"email_addresses" validate:"required,min=1,max=250,dive,email"`
	MessageText    string    `json:"message_text" validate:"required,max=28000"`
	ContentType    string    `json:"content_type" validate:"omitempty,oneof=text html"`
	Mentions       []Mention `json:"mentions" validate:"max=50,dive"`
}

// ChannelMessageRequest posts one message to a team channel, both
// resolved by display name (mode 2).
type ChannelMessageRequest struct {
	Mode        Mode      `json:"mode" validate:"required,eq=2"`
	TeamName    string    `json:"team_name" validate:"required,max=120"`
	ChannelName string    `json:"channel_name" validate:"required,max=50"`
	MessageText string    `json:"message_text" validate:"required,max=28000"`
	ContentType string    `json:"content_type" validate:"omitempty,oneof=text html"`
	Subject     string    `json:"subject" validate:"max=255"`
	Mentions    []Mention `json:"mentions" validate:"max=50,dive"`
}

// RefreshTokenRequest rotates the stored refresh token (mode 3). It
// carries no fields beyond the discriminant.
type RefreshTokenRequest struct {
	Mode Mode `json:"mode" validate:"required,eq=3"`
}

// Request is the validated, immutable result of parsing an invocation
// body. Exactly one of the mode pointers is non-nil, matching Mode.
type Request struct {
	Mode    Mode
	DM      *DirectMessageRequest
	Channel *ChannelMessageRequest
	Refresh *RefreshTokenRequest
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in validation errors, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseRequest decodes and validates a raw invocation body. The schema
// is closed: any field not declared for the request's mode rejects the
// whole request. Parsing is pure and deterministic; this is the only
// place validation errors originate.
func ParseRequest(body []byte) (*Request, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperrors.Validation("Invalid JSON format: empty request body")
	}

	var probe struct {
		Mode *Mode `json:"mode"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, apperrors.Validation("Invalid JSON format: %s", err)
	}
	if probe.Mode == nil {
		return nil, apperrors.Validation("Validation failed: field 'mode' is required")
	}

	switch *probe.Mode {
	case ModeDirectMessage:
		req := &DirectMessageRequest{ContentType: "text"}
		if err := decodeStrict(body, req); err != nil {
			return nil, err
		}
		applyMentionDefaults(req.Mentions)
		if err := checkConstraints(req); err != nil {
			return nil, err
		}
		return &Request{Mode: ModeDirectMessage, DM: req}, nil

	case ModeChannelMessage:
		req := &ChannelMessageRequest{ContentType: "text"}
		if err := decodeStrict(body, req); err != nil {
			return nil, err
		}
		applyMentionDefaults(req.Mentions)
		if err := checkConstraints(req); err != nil {
			return nil, err
		}
		return &Request{Mode: ModeChannelMessage, Channel: req}, nil

	case ModeRefreshToken:
		req := &RefreshTokenRequest{}
		if err := decodeStrict(body, req); err != nil {
			return nil, err
		}
		if err := checkConstraints(req); err != nil {
			return nil, err
		}
		return &Request{Mode: ModeRefreshToken, Refresh: req}, nil

	default:
		return nil, apperrors.Validation("Invalid mode: %d. Must be 1 (DM), 2 (channel), or 3 (refresh_token)", *probe.Mode)
	}
}

// decodeStrict rejects any field the target struct does not declare.
func decodeStrict(body []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return apperrors.Validation("Validation failed: %s", err)
	}
	return nil
}

// checkConstraints runs struct validation and reports the first violated
// constraint with its field name.
func checkConstraints(target interface{}) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		if fe.Param() != "" {
			return apperrors.Validation("Validation failed: field '%s' violates constraint '%s=%s'", fe.Field(), fe.Tag(), fe.Param())
		}
		return apperrors.Validation("Validation failed: field '%s' violates constraint '%s'", fe.Field(), fe.Tag())
	}
	return apperrors.Validation("Request validation failed: %s", err)
}

func applyMentionDefaults(mentions []Mention) {
	for i := range mentions {
		if mentions[i].MentionType == "" {
			mentions[i].MentionType = "user"
		}
	}
}
