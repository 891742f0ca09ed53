package models

import "time"

// QRToken is a short-lived, single-active secret bound to a ClassSession.
// At most one token per session carries active=true at any instant; issuing
// a replacement flips every prior token to inactive in the same transaction.
// Tokens are never reactivated or reused.
type QRToken struct {
	ID             string    `db:"id" json:"id"`
	ClassSessionID string    `db:"class_session_id" json:"class_session_id"`
	Secret         string    `db:"secret" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	Active         bool      `db:"active" json:"active"`
}

// QRPayload is the JSON document encoded into the scannable image.
// The roster snapshot, when present, is display sugar only: scan
// validation always re-derives eligibility from storage.
type QRPayload struct {
	ScanURL  string        `json:"scan_url"`
	Course   string        `json:"course"`
	Batch    string        `json:"batch"`
	Students []RosterEntry `json:"students,omitempty"`
}

// IssuedQR is returned to the admin after minting a token.
type IssuedQR struct {
	TokenID   string    `json:"token_id"`
	ScanURL   string    `json:"scan_url"`
	ExpiresAt time.Time `json:"expires_at"`
	PNGBase64 string    `json:"qr_png_base64"`
}

// ScanRequest carries the student's roll number submitted against a token.
// The token identity travels in the query string (sid, token); only the roll
// number is entered by the student.
type ScanRequest struct {
	RollNumber string `json:"roll_number" form:"roll_number" validate:"required,max=32"`
}

// ScanResult confirms a recorded attendance back to the student.
type ScanResult struct {
	RollNumber  string    `json:"roll_number"`
	StudentName string    `json:"student_name"`
	Course      string    `json:"course"`
	MarkedAt    time.Time `json:"marked_at"`
}

// ScanContext describes the session behind a validated token, shown on the
// scan entry form before the student submits a roll number.
type ScanContext struct {
	TokenID   string    `json:"token_id"`
	Course    string    `json:"course"`
	Batch     string    `json:"batch"`
	Room      string    `json:"room"`
	Date      time.Time `json:"date"`
	ExpiresAt time.Time `json:"expires_at"`
}
