package restapi

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// CookieStore persists session cookies for one origin.
type CookieStore interface {
	LoadCookies(origin string) ([]*http.Cookie, error)
	SaveCookies(origin string, cookies []*http.Cookie) error
}

// persistentJar is an in-memory cookie jar that writes the cookies it
// holds for the API back to a CookieStore whenever the server sets one.
type persistentJar struct {
	*cookiejar.Jar
	scope *url.URL
	store CookieStore
}

func newPersistentJar(origin *url.URL, store CookieStore) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return jar, nil
	}

	scope, err := url.Parse(strings.TrimRight(origin.String(), "/") + "/api/")
	if err != nil {
		return nil, err
	}
	saved, err := store.LoadCookies(originOf(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	if len(saved) > 0 {
		jar.SetCookies(scope, saved)
	}
	return &persistentJar{Jar: jar, scope: scope, store: store}, nil
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)
	// Persistence is best effort; the in-memory session keeps working.
	_ = j.store.SaveCookies(originOf(j.scope), j.Jar.Cookies(j.scope))
}

func originOf(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}
