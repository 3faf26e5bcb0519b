// Package flags holds the command line flags shared by commands working on a domain.
package flags

import (
	"github.com/ettle/strcase"
	"github.com/urfave/cli/v3"

	"github.com/jspdown/deckhand/internal/domain"
)

const (
	flagAppName            = "app-name"
	flagHost               = "host"
	flagPort               = "port"
	flagHTTPS              = "https"
	flagPath               = "path"
	flagInternalPath       = "internal-path"
	flagStripPath          = "strip-path"
	flagConfigKey          = "config-key"
	flagCertificateType    = "certificate-type"
	flagCustomCertResolver = "cert-resolver"
	flagServiceName        = "service-name"
	flagDomainType         = "domain-type"
	flagComposeType        = "compose-type"
)

// Domain returns the flags describing an application domain.
func Domain(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagAppName,
			Usage:    "Name of the application the domain belongs to",
			Sources:  cli.EnvVars(strcase.ToSNAKE(flagAppName)),
			Required: required,
		},
		&cli.StringFlag{
			Name:     flagHost,
			Usage:    "Host routed to the service",
			Required: required,
		},
		&cli.IntFlag{
			Name:  flagPort,
			Usage: "Port of the service",
			Value: domain.DefaultPort,
		},
		&cli.BoolFlag{
			Name:  flagHTTPS,
			Usage: "Serve the domain on the websecure entrypoint and redirect HTTP to HTTPS",
		},
		&cli.StringFlag{
			Name:  flagPath,
			Usage: "Path prefix routed to the service",
		},
		&cli.StringFlag{
			Name:  flagInternalPath,
			Usage: "Path prepended to requests before reaching the service",
		},
		&cli.BoolFlag{
			Name:  flagStripPath,
			Usage: "Remove the path prefix before reaching the service",
		},
		&cli.IntFlag{
			Name:  flagConfigKey,
			Usage: "Key distinguishing the domains of an application",
		},
		&cli.StringFlag{
			Name:  flagCertificateType,
			Usage: "Certificate type (letsencrypt, none, custom)",
			Value: string(domain.CertificateNone),
		},
		&cli.StringFlag{
			Name:  flagCustomCertResolver,
			Usage: "Certificate resolver of custom certificates",
		},
		&cli.StringFlag{
			Name:  flagServiceName,
			Usage: "Compose service the domain routes to",
		},
		&cli.StringFlag{
			Name:  flagDomainType,
			Usage: "Domain type (application, compose, preview)",
		},
		&cli.StringFlag{
			Name:  flagComposeType,
			Usage: "Compose type (docker-compose, stack), empty for applications",
		},
	}
}

// App reads the application from the flags returned by Domain.
func App(cmd *cli.Command) domain.App {
	return domain.App{Name: cmd.String(flagAppName)}
}

// ReadDomain reads the domain from the flags returned by Domain.
func ReadDomain(cmd *cli.Command) domain.Domain {
	return domain.Domain{
		Host:               cmd.String(flagHost),
		Port:               cmd.Int(flagPort),
		HTTPS:              cmd.Bool(flagHTTPS),
		Path:               cmd.String(flagPath),
		InternalPath:       cmd.String(flagInternalPath),
		StripPath:          cmd.Bool(flagStripPath),
		UniqueConfigKey:    cmd.Int(flagConfigKey),
		CertificateType:    domain.CertificateType(cmd.String(flagCertificateType)),
		CustomCertResolver: cmd.String(flagCustomCertResolver),
		ServiceName:        cmd.String(flagServiceName),
		Type:               domain.Type(cmd.String(flagDomainType)),
	}
}

// ComposeType reads the compose type from the flags returned by Domain.
func ComposeType(cmd *cli.Command) domain.ComposeType {
	return domain.ComposeType(cmd.String(flagComposeType))
}

// IsSet reports whether the domain flags are set.
func IsSet(cmd *cli.Command) bool {
	return cmd.IsSet(flagHost)
}
