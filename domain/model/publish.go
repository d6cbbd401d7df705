package model

import (
	"strings"
	"time"
)

// PublishRequest is the normalized, platform-agnostic publish payload.
type PublishRequest struct {
	Platform     Platform   `json:"platform"`
	TargetID     string     `json:"target_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Hashtags     []string   `json:"hashtags,omitempty"`
	Media        []string   `json:"media"`
	ScheduleTime *time.Time `json:"schedule_time,omitempty"`
}

// NormalizeMedia trims every URL and drops empty entries, keeping order.
func NormalizeMedia(media []string) []string {
	out := make([]string, 0, len(media))
	for _, m := range media {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Caption joins title, description and hashtags with blank lines.
func (r *PublishRequest) Caption() string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSpace(r.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		parts = append(parts, d)
	}
	if tags := NormalizeHashtags(r.Hashtags); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n\n")
}

// NormalizeHashtags prefixes each tag with '#', strips whitespace and
// removes case-insensitive duplicates while keeping first-seen order.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		for _, tag := range strings.Fields(raw) {
			tag = "#" + strings.TrimLeft(tag, "#")
			if len(tag) == 1 {
				continue
			}
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// PostResult is returned for an immediate publish.
type PostResult struct {
	PostID   string   `json:"postId"`
	Platform Platform `json:"platform"`
}

// ScheduledAck is returned when a publish was deferred.
type ScheduledAck struct {
	TaskID       string    `json:"taskId"`
	Message      string    `json:"message"`
	ScheduleTime time.Time `json:"scheduleTime"`
}

// PublishResponse carries exactly one of Post or Scheduled.
type PublishResponse struct {
	Post      *PostResult
	Scheduled *ScheduledAck
}
