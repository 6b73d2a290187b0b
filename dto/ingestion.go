package dto

import "github.com/orgohq/mailgate/internal/enum"

// PollOptions filters which account configs one poll run covers.
type PollOptions struct {
	OrganizationID  string
	AccountConfigID string
	// MaxMessages caps unread messages fetched per account; zero uses the
	// configured default.
	MaxMessages int
}

// BatchResult summarizes one account's ingestion run.
type BatchResult struct {
	BatchID         string           `json:"batchId"`
	AccountConfigID string           `json:"accountConfigId"`
	OrganizationID  string           `json:"organizationId"`
	Status          enum.BatchStatus `json:"status"`
	TotalFetched    int              `json:"totalFetched"`
	TotalPersisted  int              `json:"totalPersisted"`
	TotalFailed     int              `json:"totalFailed"`
	ErrorSummary    string           `json:"errorSummary,omitempty"`
}
