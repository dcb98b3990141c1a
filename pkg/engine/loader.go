package engine

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/config/injector"
	"github.com/raywall/fast-endpoints/pkg/secrets"
	"gopkg.in/yaml.v3"
)

// --- Interfaces para Mocking ---

type S3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type DynamoGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// UniversalLoader suporta múltiplas fontes de configuração (Local, S3, DynamoDB).
type UniversalLoader struct {
	Region string

	validator *config.ConfigValidator
	injector  *injector.Injector
}

// NewUniversalLoader cria uma nova instância. As referências ${ssm.*} e
// ${secret.*} do YAML são resolvidas na AWS.
func NewUniversalLoader() *UniversalLoader {
	region := os.Getenv("AWS_REGION")
	return &UniversalLoader{
		Region:    region,
		validator: config.NewValidator(),
		injector:  injector.New(secrets.NewResolver(region)),
	}
}

// Load detecta o esquema da fonte e carrega a configuração.
func (ul *UniversalLoader) Load(ctx context.Context, source string) (*config.EndpointsConfig, error) {
	var rawData []byte
	var err error

	switch {
	case strings.HasPrefix(source, "s3://"):
		awsCfg, cfgErr := secrets.GetAWSConfig(ctx, ul.Region)
		if cfgErr != nil {
			return nil, fmt.Errorf("falha ao carregar config AWS: %w", cfgErr)
		}
		rawData, err = ul.loadFromS3Internal(ctx, s3.NewFromConfig(awsCfg), source)

	case strings.HasPrefix(source, "dynamodb://"):
		awsCfg, cfgErr := secrets.GetAWSConfig(ctx, ul.Region)
		if cfgErr != nil {
			return nil, fmt.Errorf("falha ao carregar config AWS: %w", cfgErr)
		}
		rawData, err = ul.loadFromDynamoDBInternal(ctx, dynamodb.NewFromConfig(awsCfg), source)

	default:
		rawData, err = ul.loadFromFile(source)
	}

	if err != nil {
		return nil, fmt.Errorf("falha leitura config (%s): %w", source, err)
	}

	return ul.Parse(ctx, rawData)
}

// --- Estratégias de carregamento (métodos internos testáveis) ---

func (ul *UniversalLoader) loadFromFile(path string) ([]byte, error) {
	// Suporta tanto "file://config.yaml" quanto apenas "config.yaml"
	return os.ReadFile(strings.TrimPrefix(path, "file://"))
}

func (ul *UniversalLoader) loadFromS3Internal(ctx context.Context, client S3Downloader, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL S3 inválida: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (ul *UniversalLoader) loadFromDynamoDBInternal(ctx context.Context, client DynamoGetter, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL DynamoDB inválida: %w", err)
	}

	tableName := u.Host
	pkValue := strings.TrimPrefix(u.Path, "/")

	// Query Params opcionais: dynamodb://tabela/chave?col=dado&pk=ApiId
	colName := u.Query().Get("col")
	if colName == "" {
		colName = "config" // Coluna padrão onde o YAML está salvo
	}

	pkName := u.Query().Get("pk")
	if pkName == "" {
		pkName = "id"
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key: map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return nil, err
	}

	if out.Item == nil {
		return nil, fmt.Errorf("item '%s' não encontrado na tabela %s", pkValue, tableName)
	}

	var itemMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &itemMap); err != nil {
		return nil, err
	}

	content, ok := itemMap[colName].(string)
	if !ok || content == "" {
		return nil, fmt.Errorf("coluna '%s' inválida ou vazia no DynamoDB", colName)
	}

	return []byte(content), nil
}

// Parse decodifica o YAML, resolve as referências e valida o resultado.
func (ul *UniversalLoader) Parse(ctx context.Context, data []byte) (*config.EndpointsConfig, error) {
	var cfg config.EndpointsConfig

	// 1. Unmarshal (YAML -> Struct)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML malformado: %w", err)
	}

	// 2. Injection (Env/Secrets/SSM)
	if ul.injector != nil {
		if err := ul.injector.Inject(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("falha na injeção de variáveis: %w", err)
		}
	}

	// 3. Validation
	if ul.validator != nil {
		if err := ul.validator.Validate(&cfg); err != nil {
			return nil, fmt.Errorf("validação da configuração falhou: %w", err)
		}
	}

	return &cfg, nil
}
