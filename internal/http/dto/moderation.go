package dto

import "time"

type IngestMessageRequest struct {
	MessageID    string   `json:"message_id" binding:"required"`
	ChannelID    string   `json:"channel_id" binding:"required"`
	AccountID    string   `json:"account_id" binding:"required"`
	AccountLabel string   `json:"account_label" binding:"required"`
	Content      string   `json:"content"`
	ImageURLs    []string `json:"image_urls,omitempty"`
}

type IngestMessageResponse struct {
	Verdict         string     `json:"verdict,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Source          string     `json:"source,omitempty"`
	Duplicate       bool       `json:"duplicate"`
	Restricted      bool       `json:"restricted"`
	RestrictedUntil *time.Time `json:"restricted_until,omitempty"`
}

type RestrictionResponse struct {
	AccountID        string    `json:"account_id"`
	Label            string    `json:"label"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type ActionResponse struct {
	ID              int64      `json:"id"`
	AccountID       string     `json:"account_id"`
	AccountLabel    string     `json:"account_label"`
	ChannelID       string     `json:"channel_id"`
	MessageID       string     `json:"message_id"`
	Verdict         string     `json:"verdict"`
	Reason          string     `json:"reason"`
	Source          string     `json:"source"`
	RestrictedUntil *time.Time `json:"restricted_until,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
