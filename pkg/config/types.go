package config

import "time"

const (
	// DefaultBasePath é o prefixo sob o qual o dispatcher publica as APIs.
	DefaultBasePath = "/_ah/api"
	// DefaultRegistryPath é o prefixo do backend (SPI).
	DefaultRegistryPath = "/_ah/spi"
)

// EndpointsConfig representa a estrutura raiz do arquivo YAML de APIs.
type EndpointsConfig struct {
	Version string     `yaml:"version" validate:"required"`
	Server  ServerConf `yaml:"server" validate:"required"`
	APIs    []APIConf  `yaml:"apis" validate:"dive"`
}

// ServerConf contém os metadados e configurações de runtime do servidor.
type ServerConf struct {
	Name         string          `yaml:"name" validate:"required,hostname_rfc1123"`
	Runtime      string          `yaml:"runtime" validate:"required,oneof=local lambda ecs eks ec2"`
	Port         int             `yaml:"port" validate:"required_unless=Runtime lambda,gte=0,lte=65535"`
	BasePath     string          `yaml:"base_path" validate:"omitempty,startswith=/"`
	RegistryPath string          `yaml:"registry_path" validate:"omitempty,startswith=/"`
	Timeout      string          `yaml:"timeout"` // Ex: "500ms", "2s"
	Environment  EnvironmentConf `yaml:"environment"`
	Logging      LoggingConf     `yaml:"logging"`
	Metrics      MetricsConf     `yaml:"metrics"`
	Cache        CacheConf       `yaml:"cache"`
	CORS         CORSConf        `yaml:"cors"`
	HotReload    HotReloadConf   `yaml:"hot_reload"`
}

// EnvironmentConf permite fixar o ambiente no YAML em vez de depender
// da variável SERVER_SOFTWARE do processo.
type EnvironmentConf struct {
	ServerSoftware string `yaml:"server_software"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog    DatadogConf    `yaml:"datadog"`
	Prometheus PrometheusConf `yaml:"prometheus"`
}

type DatadogConf struct {
	Enabled   bool   `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

type PrometheusConf struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path" validate:"omitempty,startswith=/"`
	Namespace string `yaml:"namespace"`
}

// CacheConf define onde os documentos gerados (config/discovery) ficam em cache.
type CacheConf struct {
	Type     string `yaml:"type" validate:"omitempty,oneof=memory redis none"`
	Addr     string `yaml:"addr" validate:"required_if=Type redis"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	Size     int    `yaml:"size" validate:"gte=0"`
	TTL      string `yaml:"ttl"`
}

type CORSConf struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" validate:"gte=0"`
}

type HotReloadConf struct {
	SQSQueueURL string `yaml:"sqs_queue_url" json:"sqs_queue_url"`
}

// APIConf descreve uma API publicada (nome + versão).
type APIConf struct {
	Name        string       `yaml:"name" validate:"required,api_name"`
	Version     string       `yaml:"version" validate:"required"`
	Hostname    string       `yaml:"hostname"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Methods     []MethodConf `yaml:"methods" validate:"dive"`
}

// MethodConf descreve um método de uma API.
type MethodConf struct {
	Name        string           `yaml:"name" validate:"required"`
	Path        string           `yaml:"path" validate:"required"`
	HTTPMethod  string           `yaml:"http_method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Description string           `yaml:"description"`
	Target      TargetConf       `yaml:"target"`
	Validations []ValidationRule `yaml:"validations" validate:"dive"`
}

type TargetConf struct {
	URL     string          `yaml:"url"`
	Method  string          `yaml:"method"`
	Timeout string          `yaml:"timeout"`
	Auth    *TargetAuthConf `yaml:"auth"`
}

// TargetAuthConf habilita o fluxo OAuth2 client_credentials nas chamadas ao
// target. ClientSecret costuma vir de ${secret.x}.
type TargetAuthConf struct {
	TokenURL     string `yaml:"token_url" validate:"required,url"`
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

type ValidationRule struct {
	ID     string        `yaml:"id" validate:"required"`
	Expr   string        `yaml:"expr" validate:"required"`
	OnFail ErrorResponse `yaml:"on_fail" validate:"required"`
}

type ErrorResponse struct {
	Code int    `yaml:"code" validate:"gte=400,lt=600"`
	Msg  string `yaml:"msg" validate:"required"`
}

func (s ServerConf) GetTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetBasePath retorna o base path normalizado (sem barra final).
func (s ServerConf) GetBasePath() string {
	return normalizePath(s.BasePath, DefaultBasePath)
}

func (s ServerConf) GetRegistryPath() string {
	return normalizePath(s.RegistryPath, DefaultRegistryPath)
}

func (c CacheConf) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 10 * time.Minute
	}
	return d
}

func normalizePath(p, fallback string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	if p == "" || p == "/" {
		return fallback
	}
	return p
}
