// Package handlers implements the gin handlers of the HTTP API. Every
// response uses the same envelope: {success, data} or {success, error}.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// errorBody converts err to the envelope body and picks the status. Server
// errors keep their code but the message is replaced with the code default.
func errorBody(err error) (int, *ErrorBody) {
	var ae *errors.AppError
	if !stderrors.As(err, &ae) {
		return http.StatusInternalServerError, &ErrorBody{
			Code:    string(errors.ErrCodeInternal),
			Message: errors.DefaultMessageForCode(errors.ErrCodeInternal),
		}
	}
	status := errors.HTTPStatusForCode(ae.Code)
	body := &ErrorBody{Code: string(ae.Code), Message: ae.Message, Detail: ae.Detail}
	if status >= http.StatusInternalServerError {
		body.Message = errors.DefaultMessageForCode(ae.Code)
		body.Detail = ""
	}
	return status, body
}

func respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{Success: false, Error: body})
}

// bindJSON decodes the body into dest, reporting malformed JSON as a 400.
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.Wrap(err, errors.ErrCodeBadRequest, "request body too large")
		}
		return errors.Wrap(err, errors.ErrCodeBadRequest, "malformed JSON body").WithDetail(err.Error())
	}
	return nil
}
