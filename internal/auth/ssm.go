package auth

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"teams-notify-api/internal/apperrors"
)

// ParameterStore is the read/write secret source holding the refresh
// token. It is resolved once at cold start and shared across invocations.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
	PutParameter(ctx context.Context, name, value string) error
}

// ssmParameterStore backs ParameterStore with AWS SSM Parameter Store,
// storing the token as an encrypted SecureString.
type ssmParameterStore struct {
	client *ssm.Client
}

// NewSSMParameterStore builds a ParameterStore from the default AWS
// configuration chain.
func NewSSMParameterStore(ctx context.Context) (ParameterStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to load AWS configuration: %s", err)
	}
	return &ssmParameterStore{client: ssm.NewFromConfig(cfg)}, nil
}

func (s *ssmParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", apperrors.Internal("SSM parameter get failed: %s", err)
	}
	return aws.ToString(out.Parameter.Value), nil
}

func (s *ssmParameterStore) PutParameter(ctx context.Context, name, value string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return apperrors.Internal("SSM parameter save failed: %s", err)
	}
	return nil
}
