package invitesdk

import (
	"errors"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/tenancy/pkg/cryptox"
)

// ErrInvalidLink is returned for links that do not carry an invite token.
var ErrInvalidLink = errors.New("invitesdk: not an invite link")

// ParseInviteLink extracts the token from any of:
//
//	https://host/invite?token=T
//	https://host/invite/T
//	tenancy://invite?token=T
//	tenancy://invite/T
func ParseInviteLink(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", ErrInvalidLink
	}

	// For tenancy://invite/T the host is "invite"; fold it into the path.
	path := u.Path
	switch u.Scheme {
	case "tenancy":
		path = "/" + u.Host + u.Path
	case "https", "http":
	default:
		return "", ErrInvalidLink
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 {
		return "", ErrInvalidLink
	}

	var token string
	switch {
	case segments[len(segments)-1] == "invite":
		token = u.Query().Get("token")
	case len(segments) >= 2 && segments[len(segments)-2] == "invite":
		token = segments[len(segments)-1]
	}

	if !cryptox.WellFormedToken(token) {
		return "", ErrInvalidLink
	}
	return token, nil
}

// BuildInviteLink appends token to base as a token query parameter.
func BuildInviteLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
