package ginutil

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// QueryList extracts a list from query parameters given either repeated
// (?k=a&k=b) or comma separated (?k=a,b). Empty entries are dropped.
func QueryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
