package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Accessor reads the latest version of a named secret.
type Accessor interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	logger    *logrus.Logger
}

// NewGCPSecretManager uses application default credentials unless a
// credentials file is given.
func NewGCPSecretManager(ctx context.Context, projectID, credentialsFile string, logger *logrus.Logger) (*GCPSecretManager, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secretmanager client: %w", err)
	}

	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		logger:    logger,
	}, nil
}

func (g *GCPSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: SecretVersion(g.projectID, name),
	}

	result, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	g.logger.WithField("secret", name).Debug("secret loaded")
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func (g *GCPSecretManager) Close() error {
	return g.client.Close()
}

// SecretVersion is the resource name of the latest version of a secret.
func SecretVersion(projectID, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}

type SecretNames struct {
	PrivateKey   string `mapstructure:"private_key"`
	VaultAddress string `mapstructure:"vault_address"`
	JWTSecret    string `mapstructure:"jwt_secret"`
}

func DefaultSecretNames() SecretNames {
	return SecretNames{
		PrivateKey:   "perptrader-private-key",
		VaultAddress: "perptrader-vault-address",
		JWTSecret:    "perptrader-monitor-jwt-secret",
	}
}
