package traefik

import (
	"fmt"
	"regexp"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"

	"github.com/jspdown/deckhand/internal/domain"
)

// Entrypoints domains are exposed on.
const (
	EntrypointWeb       = "web"
	EntrypointWebsecure = "websecure"
)

// HTTPSRedirectMiddleware is the shared middleware redirecting HTTP traffic to HTTPS.
const HTTPSRedirectMiddleware = "redirect-to-https@file"

// CertResolverLetsEncrypt is the certificate resolver of the platform.
const CertResolverLetsEncrypt = "letsencrypt"

// previewName extracts the base application name from "preview-{base}-{id}" names.
var previewName = regexp.MustCompile(`^preview-(.+)-[^-]+$`)

// Router and middleware names.
func routerLabelName(app string, d domain.Domain, entrypoint string) string {
	return fmt.Sprintf("%s-%d-%s", app, d.UniqueConfigKey, entrypoint)
}

func stripPrefixName(app string, d domain.Domain) string {
	return fmt.Sprintf("stripprefix-%s-%d", app, d.UniqueConfigKey)
}

func addPrefixName(app string, d domain.Domain) string {
	return fmt.Sprintf("addprefix-%s-%d", app, d.UniqueConfigKey)
}

func redirectName(app string, d domain.Domain, r domain.Redirect) string {
	return fmt.Sprintf("redirect-%s-%d", baseAppName(app, d), r.UniqueConfigKey)
}

func authName(app string, d domain.Domain) string {
	return "auth-" + baseAppName(app, d)
}

// baseAppName returns the name of the application a preview deployment belongs to.
// Previews share the redirect and security middlewares of their application.
func baseAppName(app string, d domain.Domain) string {
	if d.Type != domain.TypePreview {
		return app
	}

	return previewName.ReplaceAllString(app, "$1")
}

// Middlewares returns the middlewares a domain router uses on the given entrypoint,
// in the order Traefik must apply them.
func Middlewares(app domain.App, d domain.Domain, entrypoint string) []string {
	var middlewares []string

	if entrypoint == EntrypointWeb && d.HTTPS {
		middlewares = append(middlewares, HTTPSRedirectMiddleware)
	} else {
		for _, r := range app.Redirects {
			middlewares = append(middlewares, redirectName(app.Name, d, r))
		}
		if len(app.Security) > 0 {
			middlewares = append(middlewares, authName(app.Name, d))
		}
	}

	if d.StripPath && d.HasPath() {
		middlewares = append(middlewares, stripPrefixName(app.Name, d))
	}

	if d.HasInternalPath() {
		middlewares = append(middlewares, addPrefixName(app.Name, d))
	}

	return middlewares
}

// CertResolver returns the certificate resolver of a domain, if any.
func CertResolver(d domain.Domain) string {
	switch d.CertificateType {
	case domain.CertificateLetsEncrypt:
		return CertResolverLetsEncrypt
	case domain.CertificateCustom:
		return d.CustomCertResolver
	default:
		return ""
	}
}

// NewRouterConfig creates the file provider router exposing a domain on the given entrypoint.
func NewRouterConfig(app domain.App, d domain.Domain, entrypoint string) (*dynamic.Router, error) {
	rule := Rule(d)
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	router := &dynamic.Router{
		EntryPoints: []string{entrypoint},
		Rule:        rule,
		Service:     serviceName(app.Name, d),
		Middlewares: Middlewares(app, d, entrypoint),
	}

	if entrypoint == EntrypointWebsecure {
		if resolver := CertResolver(d); resolver != "" {
			router.TLS = &dynamic.RouterTLSConfig{CertResolver: resolver}
		}
	}

	return router, nil
}
