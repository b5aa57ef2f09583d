package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Message is the error/status envelope: {"message": "..."}.
type Message struct {
	Message string `json:"message"`
}

// OK sends a 200 JSON response with data as the body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// OKMessage sends a 200 status message.
func OKMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Message{Message: msg})
}

// BadRequest sends 400 with a message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Message{Message: msg})
}

// NotFound sends 404 with a message.
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Message{Message: msg})
}

// PayloadTooLarge sends 413 with a message.
func PayloadTooLarge(c *gin.Context, msg string) {
	c.JSON(http.StatusRequestEntityTooLarge, Message{Message: msg})
}

// Internal sends 500 with a message.
func Internal(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Message{Message: msg})
}
