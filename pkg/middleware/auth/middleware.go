package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type AuthType string

const (
	AuthTypeBearer AuthType = "Bearer"
	AuthTypeApi    AuthType = "Api"
)

const userKey = "AUTH_USER_KEY"

// ClientData is the authenticated caller attached to the request context.
type ClientData struct {
	UserID   string
	Notebook string
}

type AuthFunc func(ctx *gin.Context, token string) *ClientData

// AuthWeb guards the notebook-facing API: JWT bearer tokens for
// frontends, a static api key for host processes.
func AuthWeb() func(ctx *gin.Context) {
	return authWith(map[AuthType]AuthFunc{
		AuthTypeBearer: getTokenUser,
		AuthTypeApi:    getApiUser,
	})
}

func authWith(authFuncMap map[AuthType]AuthFunc) func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			authHeader = ctx.Query("access_token")
		}
		if authHeader == "" {
			replyUnauthorized(ctx, code.AuthErr)
			return
		}

		tokens := strings.Split(authHeader, " ")
		if len(tokens) != 2 {
			replyUnauthorized(ctx, code.AuthErr.WithMsg("malformed authorization header"))
			return
		}

		var client *ClientData
		if f, ok := authFuncMap[AuthType(tokens[0])]; ok {
			client = f(ctx, tokens[1])
		}
		if client == nil {
			replyUnauthorized(ctx, code.AuthErr)
			return
		}

		ctx.Set(userKey, client)
		ctx.Next()
	}
}

func getTokenUser(ctx *gin.Context, token string) *ClientData {
	claims, err := ParseToken(token)
	if err != nil {
		logger.Warnf(ctx, "parse token fail err: %+v", err)
		return nil
	}
	return &ClientData{UserID: claims.UserID, Notebook: claims.Notebook}
}

func getApiUser(_ *gin.Context, token string) *ClientData {
	conf := config.Global().Auth
	if conf.ApiKey == "" || token != conf.ApiKey {
		return nil
	}
	return &ClientData{UserID: "api"}
}

func replyUnauthorized(ctx *gin.Context, c *code.Code) {
	ctx.JSON(http.StatusUnauthorized, &common.RespT[any]{
		Code:  c.Code(),
		Error: c.Msg(),
	})
	ctx.Abort()
}

// GetCurrentUser returns the caller set by the auth middleware, nil when
// the request skipped auth.
func GetCurrentUser(ctx context.Context) *ClientData {
	ginCtx, ok := ctx.(*gin.Context)
	if !ok {
		return nil
	}
	if v, ok := ginCtx.Get(userKey); ok {
		if client, ok := v.(*ClientData); ok {
			return client
		}
	}
	return nil
}
