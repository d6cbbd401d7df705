package http

import (
	"fmt"
	"html"
	"net/http"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
)

type IOAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
	Status(ctx *gin.Context)
}

type OAuthHandler struct {
	oauthUsecase usecase.IOAuthUsecase
	vault        usecase.ICredentialVault
}

func NewOAuthHandler(oauthUsecase usecase.IOAuthUsecase, vault usecase.ICredentialVault) IOAuthHandler {
	return &OAuthHandler{oauthUsecase: oauthUsecase, vault: vault}
}

func platformParam(ctx *gin.Context) (model.Platform, bool) {
	p, ok := model.ParsePlatform(ctx.Param("platform"))
	if !ok {
		writeError(ctx, apperror.Validation("unsupported platform "+ctx.Param("platform")))
	}
	return p, ok
}

// GetAuthURL handles GET /api/oauth/:platform/url. The state is bound to the caller.
func (h *OAuthHandler) GetAuthURL(ctx *gin.Context) {
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	authURL, state, err := h.oauthUsecase.AuthURL(ctx.GetString("user_id"), platform)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AuthURLRes{AuthURL: authURL, State: state})
}

// Callback handles GET /auth/:platform/callback
func (h *OAuthHandler) Callback(ctx *gin.Context) {
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	if e := ctx.Query("error"); e != "" {
		writeError(ctx, apperror.Validation(fmt.Sprintf("authorization denied: %s %s", e, ctx.Query("error_description"))))
		return
	}
	status, err := h.oauthUsecase.Complete(ctx.Request.Context(), platform, ctx.Query("code"), ctx.Query("state"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if ctx.Query("frontend") == "1" {
		ctx.Header("Content-Type", "text/html; charset=utf-8")
		name := html.EscapeString(string(platform))
		_, _ = ctx.Writer.Write([]byte(fmt.Sprintf(`<!DOCTYPE html><html><head><title>Connected</title></head><body><script>if (window.opener){window.opener.postMessage({source:'%s-oauth',connected:true,targets:%d},'*');window.close();}else{document.write('%s connected');}</script></body></html>`, name, len(status.Targets), name)))
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// Status handles GET /api/oauth/:platform/status
func (h *OAuthHandler) Status(ctx *gin.Context) {
	platform, ok := platformParam(ctx)
	if !ok {
		return
	}
	status, err := h.vault.Status(ctx.Request.Context(), ctx.GetString("user_id"), platform)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
