package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSala/jwt"
)

// Options configures Guard.
type Options struct {
	// Protected lists path prefixes that require a session. A prefix matches
	// itself and any path below it.
	Protected     []string
	LoginPath     string
	AccessCookie  string
	RefreshCookie string
	Now           func() time.Time
}

// DefaultOptions protects the views of the reading room app.
func DefaultOptions() Options {
	return Options{
		Protected:     []string{"/livros", "/emprestimos", "/associados", "/dashboard", "/me"},
		LoginPath:     "/login",
		AccessCookie:  "access_token",
		RefreshCookie: "refresh_token",
		Now:           time.Now,
	}
}

type claimsContextKey struct{}

// ClaimsFromContext returns the decoded access token claims stored by Guard.
// They are absent when the cookie is not a JWT.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(jwt.Claims)
	return c, ok
}

// Guard redirects anonymous requests for protected paths to
// LoginPath?next=<path> with 307. Public paths pass through untouched.
func Guard(opts Options) func(http.Handler) http.Handler {
	def := DefaultOptions()
	if opts.LoginPath == "" {
		opts.LoginPath = def.LoginPath
	}
	if opts.AccessCookie == "" {
		opts.AccessCookie = def.AccessCookie
	}
	if opts.RefreshCookie == "" {
		opts.RefreshCookie = def.RefreshCookie
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsProtected(r.URL.Path, opts.Protected) {
				next.ServeHTTP(w, r)
				return
			}

			access, ok := cookieValue(r, opts.AccessCookie)
			if !ok {
				redirectToLogin(w, r, opts.LoginPath)
				return
			}

			claims, err := jwt.Inspect(access)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if claims.Expired(opts.Now()) {
				if _, ok := cookieValue(r, opts.RefreshCookie); !ok {
					redirectToLogin(w, r, opts.LoginPath)
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsProtected reports whether path equals or lies below one of prefixes.
func IsProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func cookieValue(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	target := url.URL{Path: loginPath}
	q := url.Values{}
	q.Set("next", r.URL.Path)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}
