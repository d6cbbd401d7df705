package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"social-publisher/domain/model"
)

// StringList accepts either a single JSON string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a string or an array of strings: %w", err)
	}
	*l = list
	return nil
}

type PublishReq struct {
	Platform     string     `json:"platform" binding:"required"`
	TargetID     string     `json:"targetId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Hashtags     StringList `json:"hashtags"`
	Media        StringList `json:"media"`
	ScheduleTime *time.Time `json:"scheduleTime"`
}

// ToModel keeps an unknown platform verbatim so validation can name it.
func (r *PublishReq) ToModel() *model.PublishRequest {
	platform, ok := model.ParsePlatform(r.Platform)
	if !ok {
		platform = model.Platform(strings.TrimSpace(r.Platform))
	}
	return &model.PublishRequest{
		Platform:     platform,
		TargetID:     strings.TrimSpace(r.TargetID),
		Title:        r.Title,
		Description:  r.Description,
		Hashtags:     []string(r.Hashtags),
		Media:        []string(r.Media),
		ScheduleTime: r.ScheduleTime,
	}
}

type TaskListRes struct {
	Tasks []model.ScheduledTask `json:"tasks"`
	Count int                   `json:"count"`
}

type AttemptListRes struct {
	Attempts []model.PublishAttempt `json:"attempts"`
	Count    int                    `json:"count"`
}

type AuthURLRes struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}
