package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/fast-endpoints/pkg/secrets"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SQSClient define a interface necessária para o reloader (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Reloader define a interface para recarregar o engine
type Reloader interface {
	Reload() error
}

// SQSReloader gerencia o loop de verificação do SQS. Cada lote de mensagens
// gera um único Reload; as mensagens são removidas mesmo quando ele falha,
// para não reprocessar um YAML quebrado em loop.
type SQSReloader struct {
	client   SQSClient
	queueURL string
	reloader Reloader
	logger   zerolog.Logger
	backoff  time.Duration
}

// NewSQSReloader cria uma nova instância do reloader
func NewSQSReloader(client SQSClient, queueURL string, reloader Reloader) *SQSReloader {
	return &SQSReloader{
		client:   client,
		queueURL: queueURL,
		reloader: reloader,
		logger:   log.With().Str("component", "sqs_reloader").Logger(),
		backoff:  5 * time.Second,
	}
}

// NewSQSReloaderFromRegion cria o reloader com um cliente SQS real.
func NewSQSReloaderFromRegion(ctx context.Context, region, queueURL string, reloader Reloader) (*SQSReloader, error) {
	awsCfg, err := secrets.GetAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar config AWS: %w", err)
	}
	return NewSQSReloader(sqs.NewFromConfig(awsCfg), queueURL, reloader), nil
}

// WithLogger troca o logger do componente.
func (s *SQSReloader) WithLogger(l zerolog.Logger) *SQSReloader {
	s.logger = l.With().Str("component", "sqs_reloader").Logger()
	return s
}

// Start inicia o monitoramento (bloqueante)
func (s *SQSReloader) Start(ctx context.Context) {
	if s.queueURL == "" {
		s.logger.Warn().Msg("URL da fila SQS não configurada. Hot Reload desativado.")
		return
	}

	s.logger.Info().Str("queue", s.queueURL).Msg("📡 Monitorando fila SQS para Hot Reload")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Parando monitoramento SQS")
			return
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20, // Long polling
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Dur("retry_in", s.backoff).Msg("Erro no SQS")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
			continue
		}

		if len(out.Messages) == 0 {
			continue
		}

		s.logger.Info().Int("messages", len(out.Messages)).Msg("🔔 Evento de alteração recebido via SQS!")
		if err := s.reloader.Reload(); err != nil {
			s.logger.Error().Err(err).Msg("❌ Falha no Reload, configuração anterior mantida")
		} else {
			s.logger.Info().Msg("✅ Hot Reload aplicado")
		}

		for _, msg := range out.Messages {
			if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				s.logger.Warn().Err(err).Msg("falha ao remover mensagem da fila")
			}
		}
	}
}
