package fake_auth

import (
	"github.com/gin-gonic/gin"
	"net/http"
)

// FakeAuth lets every request through. Denied flips it to reject everything.
type FakeAuth struct {
	Denied bool
}

func (fa FakeAuth) StartSession(c *gin.Context) {
	if fa.Denied {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Status(http.StatusOK)
}

func (fa FakeAuth) ClearSession(w http.ResponseWriter) {}

func (fa FakeAuth) Authenticate(r *http.Request) bool {
	return !fa.Denied
}
