package traefik

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	httpmuxer "github.com/traefik/traefik/v3/pkg/muxer/http"

	"github.com/jspdown/deckhand/internal/domain"
)

// ErrInvalidRule indicates that a generated rule is rejected by the Traefik rule parser.
var ErrInvalidRule = errors.New("invalid router rule")

var syntaxParser = sync.OnceValues(func() (httpmuxer.SyntaxParser, error) {
	return httpmuxer.NewSyntaxParser()
})

// Rule returns the rule matching the host, and the path prefix if any, of a domain.
func Rule(d domain.Domain) string {
	rule := fmt.Sprintf("Host(`%s`)", d.Host)
	if d.HasPath() {
		rule += fmt.Sprintf(" && PathPrefix(`%s`)", d.Path)
	}

	return rule
}

// ValidateRule parses the rule the same way Traefik does when loading a router.
func ValidateRule(rule string) error {
	parser, err := syntaxParser()
	if err != nil {
		return fmt.Errorf("creating syntax parser: %w", err)
	}

	mux := httpmuxer.NewMuxer(parser)
	if err = mux.AddRoute(rule, "", 0, http.NotFoundHandler()); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidRule, rule, err)
	}

	return nil
}
