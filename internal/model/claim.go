package model

import "time"

// Verdict is the outcome assigned to a flagged claim
type Verdict string

const (
	VerdictTrue       Verdict = "TRUE"
	VerdictFalse      Verdict = "FALSE"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictUnverified Verdict = "UNVERIFIED"
)

// ParseVerdict maps free-form text onto a Verdict, UNVERIFIED when it does not match
func ParseVerdict(s string) Verdict {
	switch Verdict(s) {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictUnverified:
		return Verdict(s)
	}
	switch s {
	case "true", "True":
		return VerdictTrue
	case "false", "False":
		return VerdictFalse
	case "misleading", "Misleading":
		return VerdictMisleading
	}
	return VerdictUnverified
}

// FlagRequest is a passage a user (or the page scanner) asks to have verified
type FlagRequest struct {
	Text      string `json:"text" validate:"required"`
	Context   string `json:"context,omitempty"`
	Reason    string `json:"reason,omitempty"`     // User's own stated reason for flagging
	ElementID string `json:"element_id,omitempty"` // Part id the passage came from
	URL       string `json:"url" validate:"required,url"`
}

// Claim is the persisted result of one verification run
type Claim struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	ElementID  string         `json:"element_id,omitempty"`
	Context    string         `json:"context,omitempty"`
	URL        string         `json:"url"`
	Evidence   EvidenceBundle `json:"evidence"`
	Confidence int            `json:"confidence"` // 0-100, higher means more likely misinformation
	Verdict    Verdict        `json:"verdict"`
	UserReason string         `json:"user_reason"` // Short human-readable reason shown next to the claim
	Timestamp  time.Time      `json:"timestamp"`
}

// Key returns the store key for a claim, one record per (url, text)
func (c Claim) Key() string {
	return ClaimKey(c.URL, c.Text)
}

// ClaimKey builds the deduplication key for a (url, text) pair
func ClaimKey(url, text string) string {
	return url + ":" + text
}
