package pulsarutils

import (
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	pulsarlog "github.com/apache/pulsar-client-go/pulsar/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
)

// NewPulsarClient creates a client for config.URL that logs through the standard logrus logger.  JWT is the only
// supported authentication method.
func NewPulsarClient(config *commonconfig.PulsarConfig) (pulsar.Client, error) {
	var authentication pulsar.Authentication

	if config.AuthenticationEnabled {
		jwtPath, err := getTokenPath(config)
		if err != nil {
			return nil, err
		}
		authentication = pulsar.NewAuthenticationTokenFromFile(jwtPath)
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:                        config.URL,
		TLSTrustCertsFilePath:      config.TLSTrustCertsFilePath,
		TLSValidateHostname:        config.TLSValidateHostname,
		TLSAllowInsecureConnection: config.TLSAllowInsecureConnection,
		MaxConnectionsPerBroker:    config.MaxConnectionsPerBroker,
		Authentication:             authentication,
		Logger:                     pulsarlog.NewLoggerWithLogrus(logrus.StandardLogger()),
	})
	return client, errors.WithStack(err)
}

func getTokenPath(config *commonconfig.PulsarConfig) (string, error) {
	if strings.ToLower(config.AuthenticationType) != "jwt" {
		return "", errors.Errorf(
			"invalid pulsar.authenticationType %q: only JWT authentication for Pulsar is supported right now",
			config.AuthenticationType)
	}
	if strings.TrimSpace(config.JwtTokenPath) == "" {
		return "", errors.New("JWT authentication was configured for Pulsar but no jwtTokenPath was supplied")
	}
	return config.JwtTokenPath, nil
}
