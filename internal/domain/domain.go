// Package domain describes how deployed services are exposed through Traefik.
package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalid indicates that a domain configuration is rejected.
var ErrInvalid = errors.New("invalid domain configuration")

// DefaultPort is the port traffic is sent to when a domain has none.
const DefaultPort = 80

// CertificateType is the way TLS certificates are obtained for a domain.
type CertificateType string

// List of certificate types.
const (
	CertificateLetsEncrypt CertificateType = "letsencrypt"
	CertificateNone        CertificateType = "none"
	CertificateCustom      CertificateType = "custom"
)

// Type is the kind of deployment a domain belongs to.
type Type string

// List of domain types.
const (
	TypeApplication Type = "application"
	TypeCompose     Type = "compose"
	TypePreview     Type = "preview"
)

// ComposeType is the engine a compose deployment runs on.
type ComposeType string

// List of compose types.
const (
	ComposeTypeCompose ComposeType = "docker-compose"
	ComposeTypeStack   ComposeType = "stack"
)

// Domain exposes a deployed service on a host and an optional path.
type Domain struct {
	Host  string `json:"host"  validate:"required,hostname_rfc1123|ip"`
	Port  int    `json:"port"  validate:"gte=0,lte=65535" minimum:"0" maximum:"65535"`
	HTTPS bool   `json:"https"`
	// Path is the path prefix routed to the service.
	Path string `json:"path,omitempty" validate:"omitempty,startswith=/,rulesafe"`
	// InternalPath is prepended to the request path before reaching the service.
	InternalPath string `json:"internalPath,omitempty" validate:"omitempty,rulesafe"`
	// StripPath removes Path from the request path before reaching the service.
	StripPath bool `json:"stripPath,omitempty"`
	// UniqueConfigKey identifies the domain among the domains of its deployment.
	UniqueConfigKey    int             `json:"uniqueConfigKey"              validate:"gte=0"`
	CertificateType    CertificateType `json:"certificateType,omitempty"    validate:"omitempty,oneof=letsencrypt none custom" enum:"letsencrypt,none,custom"`
	CustomCertResolver string          `json:"customCertResolver,omitempty" validate:"required_if=CertificateType custom"`
	// ServiceName is the compose service the domain routes to.
	ServiceName string `json:"serviceName,omitempty"`
	Type        Type   `json:"domainType,omitempty" validate:"omitempty,oneof=application compose preview" enum:"application,compose,preview"`
}

// ServerPort returns the port traffic is sent to.
func (d Domain) ServerPort() int {
	if d.Port == 0 {
		return DefaultPort
	}

	return d.Port
}

// HasPath reports whether the domain only matches a path prefix.
func (d Domain) HasPath() bool {
	return d.Path != "" && d.Path != "/"
}

// HasInternalPath reports whether requests must be prefixed before reaching the service.
func (d Domain) HasInternalPath() bool {
	return d.InternalPath != "" && d.InternalPath != "/" && strings.HasPrefix(d.InternalPath, "/")
}

// Validate checks the domain configuration.
func (d Domain) Validate() error {
	return validateStruct(d)
}

// Redirect redirects requests matching a regular expression.
type Redirect struct {
	UniqueConfigKey int    `json:"uniqueConfigKey" validate:"gte=0"`
	Regex           string `json:"regex"           validate:"required"`
	Replacement     string `json:"replacement"     validate:"required"`
	Permanent       bool   `json:"permanent"`
}

// Security protects an application with basic authentication.
type Security struct {
	Username string `json:"username" validate:"required,excludes=:"`
	Password string `json:"password" validate:"required"`
}

// App is a deployed application, as seen by the router generator.
type App struct {
	Name      string     `json:"appName"             validate:"required,hostname_rfc1123"`
	Redirects []Redirect `json:"redirects,omitempty" validate:"dive"`
	Security  []Security `json:"security,omitempty"  validate:"dive"`
}

// Validate checks the application configuration.
func (a App) Validate() error {
	return validateStruct(a)
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	// Values embedded in router rules are delimited by backticks.
	_ = v.RegisterValidation("rulesafe", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "` \t\r\n")
	})

	return v
})

func validateStruct(s any) error {
	err := validate().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var errs *multierror.Error
	for _, fieldErr := range validationErrs {
		errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrInvalid, describe(fieldErr)))
	}

	return errs
}

func describe(err validator.FieldError) string {
	field := err.Namespace()
	if _, rest, found := strings.Cut(field, "."); found {
		field = rest
	}

	switch err.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, err.Param())
	case "hostname_rfc1123|ip", "hostname_rfc1123", "ip":
		return fmt.Sprintf("%s %q is not a valid host", field, err.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, err.Param())
	case "rulesafe":
		return fmt.Sprintf("%s must not contain backticks or spaces", field)
	default:
		return fmt.Sprintf("%s failed on %s=%s", field, err.Tag(), err.Param())
	}
}
