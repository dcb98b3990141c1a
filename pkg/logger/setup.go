package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/rs/zerolog"
)

// Configure inicializa o logger global baseando-se na configuração do YAML.
//
// O logger retornado também passa a ser o DefaultContextLogger, de modo que
// log.Ctx(ctx) funcione mesmo em contextos sem logger anexado.
func Configure(cfg config.LoggingConf) zerolog.Logger {
	// Define o nível de log (default: info)
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Define o output (JSON para produção, Console "bonito" para local se solicitado)
	var output io.Writer = os.Stdout
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()

	zerolog.DefaultContextLogger = &logger
	return logger
}

// ForService anexa os campos fixos do servidor (nome e ambiente).
func ForService(base zerolog.Logger, server config.ServerConf, env config.Environment) zerolog.Logger {
	ctx := base.With().Str("service", server.Name).Str("runtime", server.Runtime)
	if env.IsDevelopment() {
		ctx = ctx.Str("server_software", env.ServerSoftware)
	}
	return ctx.Logger()
}
