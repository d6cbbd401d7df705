package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotAuthenticated    Kind = "NotAuthenticated"
	KindTokenExpired        Kind = "TokenExpired"
	KindPlatformAPI         Kind = "PlatformApiError"
	KindTooManyMediaItems   Kind = "TooManyMediaItems"
	KindEmptyPost           Kind = "EmptyPost"
	KindInvalidScheduleTime Kind = "InvalidScheduleTime"
	KindValidation          Kind = "ValidationError"
	KindNotFound            Kind = "NotFound"
)

// Stage names the protocol step a PlatformApiError happened in.
type Stage string

const (
	StageRegister Stage = "REGISTER"
	StageUpload   Stage = "UPLOAD"
	StageCompose  Stage = "COMPOSE"
	StagePublish  Stage = "PUBLISH"
	StageIdentity Stage = "IDENTITY"
)

// Error is the error type returned across the domain boundary. Two errors
// match under errors.Is when their kinds are equal, so callers compare
// against the Err* sentinels below.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	Platform   string `json:"platform,omitempty"`
	Stage      Stage  `json:"stage,omitempty"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
}

var (
	ErrNotAuthenticated    = &Error{Kind: KindNotAuthenticated}
	ErrTokenExpired        = &Error{Kind: KindTokenExpired}
	ErrPlatformAPI         = &Error{Kind: KindPlatformAPI}
	ErrTooManyMediaItems   = &Error{Kind: KindTooManyMediaItems}
	ErrEmptyPost           = &Error{Kind: KindEmptyPost}
	ErrInvalidScheduleTime = &Error{Kind: KindInvalidScheduleTime}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	if e.Kind == KindPlatformAPI {
		return fmt.Sprintf("%s: %s stage failed (http %d): %s", e.Platform, e.Stage, e.HTTPStatus, e.Message)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) ErrCode() string {
	return string(e.Kind)
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotAuthenticated, KindTokenExpired:
		return http.StatusUnauthorized
	case KindPlatformAPI:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// Is reports kind equality. An upstream 401 also satisfies ErrTokenExpired.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindTokenExpired && e.Kind == KindPlatformAPI && e.HTTPStatus == http.StatusUnauthorized
}

func NotAuthenticated(platform string) error {
	return &Error{Kind: KindNotAuthenticated, Platform: platform, Message: "no credential stored for " + platform}
}

func TokenExpired(platform string) error {
	return &Error{Kind: KindTokenExpired, Platform: platform, Message: "access token for " + platform + " has expired"}
}

func PlatformAPI(platform string, stage Stage, httpStatus int, message string) error {
	return &Error{Kind: KindPlatformAPI, Platform: platform, Stage: stage, HTTPStatus: httpStatus, Message: message}
}

func TooManyMediaItems(platform string, got, max int) error {
	return &Error{Kind: KindTooManyMediaItems, Platform: platform, Message: fmt.Sprintf("%d media items exceed the %s maximum of %d", got, platform, max)}
}

func EmptyPost(platform, message string) error {
	return &Error{Kind: KindEmptyPost, Platform: platform, Message: message}
}

func InvalidScheduleTime(message string) error {
	return &Error{Kind: KindInvalidScheduleTime, Message: message}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf extracts the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf maps err to an HTTP status, 500 for unknown errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}
