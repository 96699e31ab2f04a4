package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

// envelope is the wire shape of every response: code 0 with data on success,
// a non-zero application code with msg on failure. The HTTP status is always
// 200; clients dispatch on the code field.
type envelope struct {
	Code int    `json:"code"`
	Data any    `json:"data,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Code: 0, Data: data})
}

func respondError(c *gin.Context, err error) {
	var appErr *common.Error
	if !errors.As(err, &appErr) {
		appErr = common.ErrUnknown
	}
	c.JSON(http.StatusOK, envelope{Code: appErr.Code, Msg: appErr.Msg})
}
