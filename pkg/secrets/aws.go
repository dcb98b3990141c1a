package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var (
	awsCfg  aws.Config
	awsOnce sync.Once
	awsErr  error
)

// GetAWSConfig carrega a configuração da AWS (env vars, profile, IAM role) de forma lazy-singleton.
func GetAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	awsOnce.Do(func() {
		opts := []func(*config.LoadOptions) error{}
		if region != "" {
			opts = append(opts, config.WithRegion(region))
		}
		awsCfg, awsErr = config.LoadDefaultConfig(ctx, opts...)
	})
	return awsCfg, awsErr
}

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver resolve as referências usadas na interpolação da configuração:
//
//	env:    variável de ambiente do processo
//	ssm:    parâmetro do SSM Parameter Store (sempre com decrypt)
//	secret: segredo do Secrets Manager; "id#campo" extrai um campo de um segredo JSON
type Resolver struct {
	Region string

	mu      sync.Mutex
	ssm     SSMClient
	secrets SecretsClient
}

// NewResolver cria um Resolver que inicializa os clientes AWS sob demanda.
func NewResolver(region string) *Resolver {
	return &Resolver{Region: region}
}

// NewResolverWithClients é usado em testes ou quando os clientes já existem.
func NewResolverWithClients(ssmClient SSMClient, secretsClient SecretsClient) *Resolver {
	return &Resolver{ssm: ssmClient, secrets: secretsClient}
}

// Resolve busca o valor de uma referência.
func (r *Resolver) Resolve(ctx context.Context, source, key string) (string, error) {
	switch source {
	case "env":
		return os.Getenv(key), nil

	case "ssm":
		client, err := r.ssmClient(ctx)
		if err != nil {
			return "", err
		}
		return getParameterInternal(ctx, client, key, true)

	case "secret":
		client, err := r.secretsClient(ctx)
		if err != nil {
			return "", err
		}
		id, field, _ := strings.Cut(key, "#")
		return getSecretInternal(ctx, client, id, field)
	}

	return "", fmt.Errorf("origem de segredo desconhecida: '%s'", source)
}

func (r *Resolver) ssmClient(ctx context.Context) (SSMClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ssm == nil {
		cfg, err := GetAWSConfig(ctx, r.Region)
		if err != nil {
			return nil, fmt.Errorf("falha ao carregar config AWS: %w", err)
		}
		r.ssm = ssm.NewFromConfig(cfg)
	}
	return r.ssm, nil
}

func (r *Resolver) secretsClient(ctx context.Context) (SecretsClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.secrets == nil {
		cfg, err := GetAWSConfig(ctx, r.Region)
		if err != nil {
			return nil, fmt.Errorf("falha ao carregar config AWS: %w", err)
		}
		r.secrets = secretsmanager.NewFromConfig(cfg)
	}
	return r.secrets, nil
}

func getParameterInternal(ctx context.Context, client SSMClient, path string, decrypt bool) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("erro no SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parâmetro SSM '%s' sem valor", path)
	}
	return *out.Parameter.Value, nil
}

func getSecretInternal(ctx context.Context, client SecretsClient, secretID, field string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return "", fmt.Errorf("erro no SecretsManager: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("segredo '%s' sem SecretString", secretID)
	}

	val := *out.SecretString
	if field == "" {
		return val, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return "", fmt.Errorf("segredo '%s' não é um JSON: %w", secretID, err)
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("campo '%s' não existe no segredo '%s'", field, secretID)
	}
	return fmt.Sprintf("%v", v), nil
}
