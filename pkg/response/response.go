package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// ErrorBody is the error contract of the development backend. Clients read
// the detail field.
type ErrorBody struct {
	Detail string      `json:"detail"`
	Code   string      `json:"code,omitempty"`
	Errors interface{} `json:"errors,omitempty"`
}

// PageBody is the paginated list contract.
type PageBody struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results interface{} `json:"results"`
}

// JSON sends a bare success payload.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, data)
}

// OK responds with HTTP 200.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Page responds with one page of results and the absolute URL of the next one.
func Page(c *gin.Context, results interface{}, count int, next *string) {
	JSON(c, http.StatusOK, PageBody{Count: count, Next: next, Results: results})
}

// Error converts err into the error contract.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, ErrorBody{Detail: appErr.Message, Code: appErr.Code, Errors: appErr.Details})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Attachment streams a binary document with a Content-Disposition filename.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}
