package config

import "strings"

// DevelopmentPrefix é o prefixo que o servidor de desenvolvimento coloca em
// SERVER_SOFTWARE (ex: "Development/2.0.0").
const DevelopmentPrefix = "Development/"

// Environment descreve o ambiente de execução do servidor.
//
// O valor é construído uma única vez no boot (RuntimeEnv ou YAML) e repassado
// explicitamente para quem precisa dele; nenhum pacote consulta o ambiente
// do processo por conta própria.
type Environment struct {
	ServerSoftware string
}

// IsDevelopment indica se o servidor roda no ambiente de desenvolvimento local.
func (e Environment) IsDevelopment() bool {
	return strings.HasPrefix(e.ServerSoftware, DevelopmentPrefix)
}

// Production é o ambiente padrão quando nada é informado.
var Production = Environment{}

// Development cria um ambiente de desenvolvimento com a versão informada.
func Development(version string) Environment {
	return Environment{ServerSoftware: DevelopmentPrefix + version}
}

// RuntimeEnv reúne as variáveis de ambiente lidas pelo cmd/server.
type RuntimeEnv struct {
	ConfigPath     string `env:"CONFIG_FILE_PATH"`
	ServerSoftware string `env:"SERVER_SOFTWARE"`
	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	Port           int    `env:"PORT"`
}

// ResolveEnvironment combina o YAML com o ambiente do processo.
// O valor do YAML tem precedência.
func ResolveEnvironment(cfg EnvironmentConf, rt RuntimeEnv) Environment {
	if cfg.ServerSoftware != "" {
		return Environment{ServerSoftware: cfg.ServerSoftware}
	}
	return Environment{ServerSoftware: rt.ServerSoftware}
}
