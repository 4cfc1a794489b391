package api

import (
	csh_auth "github.com/computersciencehouse/csh-auth"
	"github.com/gin-gonic/gin"
)

// Identity is the authenticated caller.
type Identity struct {
	Username string
	FullName string
	Groups   []string
}

// Wrapper guards a handler behind authentication.
type Wrapper func(gin.HandlerFunc) gin.HandlerFunc

// Resolver extracts the caller from a request that already passed the Wrapper.
type Resolver func(c *gin.Context) (Identity, bool)

// CSHResolver reads the claims csh-auth stores on the context.
func CSHResolver(c *gin.Context) (Identity, bool) {
	cl, ok := c.Get("cshauth")
	if !ok {
		return Identity{}, false
	}
	claims, ok := cl.(csh_auth.CSHClaims)
	if !ok {
		return Identity{}, false
	}
	return Identity{
		Username: claims.UserInfo.Username,
		FullName: claims.UserInfo.FullName,
		Groups:   claims.UserInfo.Groups,
	}, true
}

func (id Identity) InAny(groups []string) bool {
	for _, want := range groups {
		for _, have := range id.Groups {
			if have == want {
				return true
			}
		}
	}
	return false
}
