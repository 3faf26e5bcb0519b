package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `
services:
  web:
    image: nginx
    depends_on:
      - db
    networks:
      - front
    volumes:
      - data:/usr/share/nginx/html
  db:
    image: postgres
    networks:
      - front
networks:
  front:
volumes:
  data:
`)

	rewritten, err := RewriteAll(doc, "abc123")
	require.NoError(t, err)

	assert.NoError(t, Validate(context.Background(), rewritten, "shop"))
}

func TestValidate_danglingReference(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `
services:
  web:
    image: nginx
    networks:
      - front
`)

	err := Validate(context.Background(), doc, "shop")
	assert.ErrorIs(t, err, ErrInvalidProject)
}
