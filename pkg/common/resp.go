package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polyglotlab/sosr/pkg/common/code"
)

type RespT[T any] struct {
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
	Data  T      `json:"data,omitempty"`
}

type PageReq struct {
	Page     int `json:"page" form:"page,default=1"`
	PageSize int `json:"page_size" form:"page_size,default=20"`
}

func (p *PageReq) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 || p.PageSize > 200 {
		p.PageSize = 20
	}
}

func (p *PageReq) Offest() int {
	return (p.Page - 1) * p.PageSize
}

type PageResp[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	List     T     `json:"list"`
}

func Reply(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, &RespT[any]{
		Code: code.Success,
		Data: data,
	})
}

func ReplyOk(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &RespT[any]{Code: code.Success})
}

func ReplyErr(ctx *gin.Context, err error) {
	c := &code.Code{}
	if !errors.As(err, &c) {
		c = code.UnknownErr.WithMsg(err.Error())
	}

	ctx.JSON(http.StatusOK, &RespT[any]{
		Code:  c.Code(),
		Error: c.Msg(),
	})
}
