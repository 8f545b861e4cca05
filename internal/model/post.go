package model

import (
	"strings"
	"time"
)

// Platform is the social network a post targets.
type Platform string

const (
	PlatformLinkedIn Platform = "LinkedIn"
	PlatformTwitter  Platform = "Twitter"
	PlatformFacebook Platform = "Facebook"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformLinkedIn, PlatformTwitter, PlatformFacebook}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	for _, v := range Platforms {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePlatform matches s against the supported platforms ignoring case.
func ParsePlatform(s string) (Platform, bool) {
	s = strings.TrimSpace(s)
	for _, v := range Platforms {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}

// PostStatus is a state of the approval workflow.
type PostStatus string

const (
	StatusPending        PostStatus = "pending"
	StatusTeamApproved   PostStatus = "team_approved"
	StatusClientApproved PostStatus = "client_approved"
	StatusPublished      PostStatus = "published"
	StatusRejected       PostStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTeamApproved, StatusClientApproved, StatusPublished, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s PostStatus) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// NonTerminalStatuses are the states a post can still be rejected from.
var NonTerminalStatuses = []PostStatus{StatusPending, StatusTeamApproved, StatusClientApproved}

const (
	MaxCaptionLength = 2000
	MaxTagLength     = 100
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// AIGenerated records which fields came from the caption generator.
type AIGenerated struct {
	Caption  bool      `json:"caption"`
	Tags     bool      `json:"tags"`
	Provider *Provider `json:"provider"`
}

// Engagement holds the post counters. Total is derived by the database.
type Engagement struct {
	Views  int64 `json:"views"`
	Likes  int64 `json:"likes"`
	Shares int64 `json:"shares"`
	Total  int64 `json:"engagement"`
}

// Post is a piece of content moving through approval towards publication.
type Post struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	Platform         Platform    `json:"platform"`
	FileRef          string      `json:"fileRef"`
	FileName         string      `json:"fileName"`
	ContentType      string      `json:"contentType"`
	Size             int64       `json:"size"`
	Caption          string      `json:"caption"`
	Description      string      `json:"description"`
	Tags             Tags        `json:"tags"`
	Status           PostStatus  `json:"status"`
	AIGenerated      AIGenerated `json:"aiGenerated"`
	Metadata         Engagement  `json:"metadata"`
	ApprovedBy       *string     `json:"approvedBy,omitempty"`
	ClientApprovedBy *string     `json:"clientApprovedBy,omitempty"`
	PublishedAt      *time.Time  `json:"publishedAt,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// PostUpdate carries the editable fields of a post. Nil means unchanged.
type PostUpdate struct {
	Platform    *Platform
	Caption     *string
	Description *string
	Tags        Tags
}

// Empty reports whether the update changes nothing.
func (u PostUpdate) Empty() bool {
	return u.Platform == nil && u.Caption == nil && u.Description == nil && u.Tags == nil
}
