package inventory

import (
	"database/sql"

	"github.com/citymetrics/ud-data-fetcher/util"
)

// Context is the context for an inventory operation
type Context struct {
	DB        *sql.DB
	sessionID string
}

// AppName returns the name of the application
func (c *Context) AppName() string {
	return "ud-data-fetcher"
}

// SessionID returns a Session ID, creating one if needed
func (c *Context) SessionID() string {
	if c.sessionID == "" {
		c.sessionID, _ = util.PsuUUID()
	}
	return c.sessionID
}

// LogRootDir returns an empty string
func (c *Context) LogRootDir() string {
	return ""
}
