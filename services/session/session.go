package session

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/DKMKC/hub-ui/services/common"
)

const profileKey = "profile_uuid"

// RegisterHandler installs the cookie session and the profile selection
// route. The selected profile uuid is the only ambient state the app
// carries, handlers read it once per request and pass it on explicitly.
func RegisterHandler(c *cli.Context, r *gin.Engine) error {
	secret := c.String(common.SessionSecretFlag)
	if secret == "" {
		return errors.New("session secret is empty")
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("hub-ui", store))
	r.GET("/p/:profileUUID", selectProfile)
	return nil
}

func selectProfile(c *gin.Context) {
	id := c.Param("profileUUID")
	if _, err := uuid.Parse(id); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, errors.Wrap(err, "parse profile uuid"))
		return
	}
	s := sessions.Default(c)
	s.Set(profileKey, id)
	if err := s.Save(); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, errors.Wrap(err, "save session"))
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, "/ticker")
}

// GetProfileFromContext returns the profile uuid selected in the current
// session, or empty when none is selected.
func GetProfileFromContext(c *gin.Context) string {
	s := sessions.Default(c)
	v, _ := s.Get(profileKey).(string)
	return v
}
