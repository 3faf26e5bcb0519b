package traefik

import (
	"fmt"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"golang.org/x/crypto/bcrypt"

	"github.com/jspdown/deckhand/internal/domain"
)

// DefaultMiddlewares returns the middlewares shared by every deployment, referenced
// with the "@file" provider suffix.
func DefaultMiddlewares() map[string]*dynamic.Middleware {
	return map[string]*dynamic.Middleware{
		"redirect-to-https": {
			RedirectScheme: &dynamic.RedirectScheme{
				Scheme:    "https",
				Permanent: true,
			},
		},
	}
}

// AppMiddlewares returns the redirect and security middlewares of an application.
func AppMiddlewares(app domain.App, d domain.Domain) (map[string]*dynamic.Middleware, error) {
	middlewares := make(map[string]*dynamic.Middleware)

	for _, r := range app.Redirects {
		middlewares[redirectName(app.Name, d, r)] = &dynamic.Middleware{
			RedirectRegex: &dynamic.RedirectRegex{
				Regex:       r.Regex,
				Replacement: r.Replacement,
				Permanent:   r.Permanent,
			},
		}
	}

	if len(app.Security) > 0 {
		users, err := basicAuthUsers(app.Security)
		if err != nil {
			return nil, err
		}

		middlewares[authName(app.Name, d)] = &dynamic.Middleware{
			BasicAuth: &dynamic.BasicAuth{
				Users:        dynamic.Users(users),
				RemoveHeader: true,
			},
		}
	}

	return middlewares, nil
}

// PathMiddlewares returns the middlewares rewriting the request path of a domain.
func PathMiddlewares(app string, d domain.Domain) map[string]*dynamic.Middleware {
	middlewares := make(map[string]*dynamic.Middleware)

	if d.StripPath && d.HasPath() {
		middlewares[stripPrefixName(app, d)] = &dynamic.Middleware{
			StripPrefix: &dynamic.StripPrefix{Prefixes: []string{d.Path}},
		}
	}

	if d.HasInternalPath() {
		middlewares[addPrefixName(app, d)] = &dynamic.Middleware{
			AddPrefix: &dynamic.AddPrefix{Prefix: d.InternalPath},
		}
	}

	return middlewares
}

// HashCredentials returns a copy of app whose security passwords are bcrypt hashes.
// Every domain of an application defines the same basic auth middleware, so the
// hashes must be computed once per application for the definitions to agree.
func HashCredentials(app domain.App) (domain.App, error) {
	if len(app.Security) == 0 {
		return app, nil
	}

	security := make([]domain.Security, 0, len(app.Security))
	for _, s := range app.Security {
		hash, err := hashPassword(s)
		if err != nil {
			return domain.App{}, err
		}

		security = append(security, domain.Security{Username: s.Username, Password: hash})
	}

	app.Security = security

	return app, nil
}

// basicAuthUsers returns the "user:hash" entries of the BasicAuth middleware.
func basicAuthUsers(security []domain.Security) ([]string, error) {
	users := make([]string, 0, len(security))
	for _, s := range security {
		hash, err := hashPassword(s)
		if err != nil {
			return nil, err
		}

		users = append(users, s.Username+":"+hash)
	}

	return users, nil
}

// hashPassword hashes the password of s, kept as is when already a bcrypt hash.
func hashPassword(s domain.Security) (string, error) {
	if _, err := bcrypt.Cost([]byte(s.Password)); err == nil {
		return s.Password, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password of user %q: %w", s.Username, err)
	}

	return string(hash), nil
}
