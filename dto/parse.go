package dto

import "github.com/orgohq/mailgate/internal/enum"

// ParseContext carries the tenant scope and policy inputs for one parse.
type ParseContext struct {
	OrganizationID       string
	EmailAccountConfigID string
	Direction            enum.EmailDirection

	// SensitivityOverride forces the envelope sensitivity when non-empty,
	// bypassing the derived classification.
	SensitivityOverride enum.EmailSensitivity

	// AllowedMimeTypes is the tenant MIME allow-list used to flag
	// attachments. Empty means everything is allowed.
	AllowedMimeTypes []string
}
