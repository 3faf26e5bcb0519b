package traefik

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jspdown/deckhand/internal/domain"
)

// DomainLabels returns the Docker labels exposing a domain on the given entrypoint.
// Middlewares are only defined by the labels of the web entrypoint; routers of both
// entrypoints reference them.
func DomainLabels(app domain.App, d domain.Domain, entrypoint string) ([]string, error) {
	rule := Rule(d)
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	router := routerLabelName(app.Name, d, entrypoint)

	labels := []string{
		fmt.Sprintf("traefik.http.routers.%s.rule=%s", router, rule),
		fmt.Sprintf("traefik.http.routers.%s.entrypoints=%s", router, entrypoint),
		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port=%d", router, d.ServerPort()),
		fmt.Sprintf("traefik.http.routers.%s.service=%s", router, router),
	}

	if entrypoint == EntrypointWeb {
		definitions, err := middlewareLabels(app, d)
		if err != nil {
			return nil, err
		}

		labels = append(labels, definitions...)
	}

	if middlewares := Middlewares(app, d, entrypoint); len(middlewares) > 0 {
		labels = append(labels, fmt.Sprintf("traefik.http.routers.%s.middlewares=%s", router, strings.Join(middlewares, ",")))
	}

	if entrypoint == EntrypointWebsecure {
		if resolver := CertResolver(d); resolver != "" {
			labels = append(labels, fmt.Sprintf("traefik.http.routers.%s.tls.certresolver=%s", router, resolver))
		}
	}

	return labels, nil
}

// middlewareLabels defines the middlewares owned by a domain.
func middlewareLabels(app domain.App, d domain.Domain) ([]string, error) {
	var labels []string

	for _, r := range app.Redirects {
		name := redirectName(app.Name, d, r)
		labels = append(labels,
			fmt.Sprintf("traefik.http.middlewares.%s.redirectregex.regex=%s", name, escapeLabel(r.Regex)),
			fmt.Sprintf("traefik.http.middlewares.%s.redirectregex.replacement=%s", name, escapeLabel(r.Replacement)),
			fmt.Sprintf("traefik.http.middlewares.%s.redirectregex.permanent=%s", name, strconv.FormatBool(r.Permanent)),
		)
	}

	if len(app.Security) > 0 {
		users, err := basicAuthUsers(app.Security)
		if err != nil {
			return nil, err
		}

		labels = append(labels, fmt.Sprintf("traefik.http.middlewares.%s.basicauth.users=%s", authName(app.Name, d), escapeLabel(strings.Join(users, ","))))
	}

	if d.StripPath && d.HasPath() {
		labels = append(labels, fmt.Sprintf("traefik.http.middlewares.%s.stripprefix.prefixes=%s", stripPrefixName(app.Name, d), d.Path))
	}

	if d.HasInternalPath() {
		labels = append(labels, fmt.Sprintf("traefik.http.middlewares.%s.addprefix.prefix=%s", addPrefixName(app.Name, d), d.InternalPath))
	}

	return labels, nil
}

// escapeLabel escapes the dollar signs Compose would otherwise interpolate.
func escapeLabel(value string) string {
	return strings.ReplaceAll(value, "$", "$$")
}
