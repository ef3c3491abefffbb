package utils

import "github.com/gin-gonic/gin"

// RespondSuccess writes the standard success envelope, merging data into it.
func RespondSuccess(c *gin.Context, status int, data gin.H) {
	body := gin.H{"status": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// RespondError writes the standard failure envelope. No partial success is
// ever reported through this path.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": false, "message": message})
}
