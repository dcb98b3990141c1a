package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockSQSClient struct {
	mock.Mock
}

func (m *MockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	return nil, args.Error(1)
}

// MockEngineReloader Thread-Safe
type MockEngineReloader struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (m *MockEngineReloader) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	return m.Err
}

// ReloadCount Helper para ler o estado de forma segura no teste
func (m *MockEngineReloader) ReloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// --- Tests ---

func TestSQSReloader_Integration(t *testing.T) {
	// Setup
	mockSQS := new(MockSQSClient)
	mockReloader := &MockEngineReloader{}

	// Configuração do comportamento do Mock SQS
	// 1ª chamada: Retorna um lote com duas mensagens de reload
	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{
				Body:          stringPtr(`{"action":"reload"}`),
				ReceiptHandle: stringPtr("handle_123"),
			},
			{
				Body:          stringPtr(`{"action":"reload"}`),
				ReceiptHandle: stringPtr("handle_456"),
			},
		},
	}, nil).Once()

	// 2ª chamada em diante: Retorna vazio para evitar loop infinito
	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{},
	}, nil).Maybe()

	mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

	reloader := NewSQSReloader(mockSQS, "https://sqs.us-east-1.amazonaws.com/123/reload-queue", mockReloader)

	ctx, cancel := context.WithCancel(context.Background())

	// Executa o método Start em goroutine
	go reloader.Start(ctx)

	// Aguarda processamento
	time.Sleep(100 * time.Millisecond)

	// Para o loop
	cancel()
	time.Sleep(50 * time.Millisecond)

	// Asserts
	assert.Equal(t, 1, mockReloader.ReloadCount(), "Um lote deve gerar um único reload")

	mockSQS.AssertCalled(t, "DeleteMessage", mock.Anything, &sqs.DeleteMessageInput{
		QueueUrl:      stringPtr("https://sqs.us-east-1.amazonaws.com/123/reload-queue"),
		ReceiptHandle: stringPtr("handle_123"),
	})
	mockSQS.AssertCalled(t, "DeleteMessage", mock.Anything, &sqs.DeleteMessageInput{
		QueueUrl:      stringPtr("https://sqs.us-east-1.amazonaws.com/123/reload-queue"),
		ReceiptHandle: stringPtr("handle_456"),
	})
}

func TestSQSReloader_ErrorsAndDisabled(t *testing.T) {
	mockSQS := new(MockSQSClient)
	mockReloader := &MockEngineReloader{Err: errors.New("yaml inválido")}

	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{{ReceiptHandle: stringPtr("h1")}},
	}, nil).Once()
	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{}, nil).Maybe()
	mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

	reloader := NewSQSReloader(mockSQS, "https://sqs/queue", mockReloader)
	reloader.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reloader.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	// Reload falhou, mas a mensagem sai da fila
	assert.Equal(t, 1, mockReloader.ReloadCount())
	mockSQS.AssertCalled(t, "DeleteMessage", mock.Anything, &sqs.DeleteMessageInput{
		QueueUrl:      stringPtr("https://sqs/queue"),
		ReceiptHandle: stringPtr("h1"),
	})

	// Sem fila, Start retorna imediatamente
	NewSQSReloader(mockSQS, "", mockReloader).Start(context.Background())
}

func stringPtr(s string) *string {
	return &s
}
