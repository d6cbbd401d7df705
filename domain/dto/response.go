package dto

import (
	"errors"

	"social-publisher/domain/apperror"
)

type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// ErrorRes is the body of every non-2xx API response.
type ErrorRes struct {
	Error          string `json:"error"`
	Kind           string `json:"kind,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Stage          string `json:"stage,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

func NewErrorRes(err error) ErrorRes {
	res := ErrorRes{Error: err.Error(), Kind: string(apperror.KindOf(err))}
	var e *apperror.Error
	if errors.As(err, &e) {
		res.Error = e.Message
		res.Platform = e.Platform
		res.Stage = string(e.Stage)
		res.UpstreamStatus = e.HTTPStatus
	}
	if res.Error == "" {
		res.Error = res.Kind
	}
	return res
}
