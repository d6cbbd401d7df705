package dto_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReq_MediaAcceptsStringOrArray(t *testing.T) {
	var single dto.PublishReq
	require.NoError(t, json.Unmarshal([]byte(`{"platform":"LinkedIn","media":"https://cdn/a.jpg","hashtags":"go"}`), &single))
	assert.Equal(t, dto.StringList{"https://cdn/a.jpg"}, single.Media)
	assert.Equal(t, dto.StringList{"go"}, single.Hashtags)
	assert.Equal(t, model.PlatformLinkedIn, single.ToModel().Platform)

	var many dto.PublishReq
	require.NoError(t, json.Unmarshal([]byte(`{"platform":"instagram","media":["a","b"],"scheduleTime":"2026-05-01T10:00:00Z"}`), &many))
	assert.Equal(t, dto.StringList{"a", "b"}, many.Media)
	require.NotNil(t, many.ScheduleTime)
	assert.True(t, many.ScheduleTime.Equal(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)))

	var none dto.PublishReq
	require.NoError(t, json.Unmarshal([]byte(`{"platform":"facebook","media":null}`), &none))
	assert.Empty(t, none.Media)

	var bad dto.PublishReq
	require.Error(t, json.Unmarshal([]byte(`{"platform":"facebook","media":42}`), &bad))
}

func TestPublishReq_UnknownPlatformKept(t *testing.T) {
	req := dto.PublishReq{Platform: " tiktok "}
	assert.Equal(t, model.Platform("tiktok"), req.ToModel().Platform)
}

func TestNewErrorRes(t *testing.T) {
	res := dto.NewErrorRes(apperror.PlatformAPI("instagram", apperror.StagePublish, 400, "Media ID is not available"))
	assert.Equal(t, dto.ErrorRes{Error: "Media ID is not available", Kind: "PlatformApiError", Platform: "instagram", Stage: "PUBLISH", UpstreamStatus: 400}, res)

	plain := dto.NewErrorRes(errors.New("boom"))
	assert.Equal(t, "boom", plain.Error)
	assert.Empty(t, plain.Kind)
}
