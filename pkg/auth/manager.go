// Package auth obtém e renova os tokens usados nas chamadas aos targets
// que exigem OAuth2 (client_credentials).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/raywall/fast-endpoints/pkg/config"
)

var ErrEmptyToken = errors.New("access_token veio vazio")

// tokenResponse mapeia a resposta padrão da RFC 6749 (OAuth2)
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // Tempo em segundos
	TokenType   string `json:"token_type"`
}

// TokenFetcher define a função que sabe como buscar um novo token.
type TokenFetcher func(ctx context.Context) (string, time.Duration, error)

// Manager guarda um token e só volta ao provedor quando ele passa de 80% do
// tempo de vida (ou após Invalidate).
type Manager struct {
	fetcher TokenFetcher
	now     func() time.Time

	mu      sync.Mutex
	token   string
	renewAt time.Time
}

// NewManager cria um gerenciador genérico.
func NewManager(fetcher TokenFetcher) *Manager {
	return &Manager{fetcher: fetcher, now: time.Now}
}

// Token devolve o token em cache ou busca um novo. Chamadas concorrentes
// esperam a mesma busca.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.renewAt) {
		return m.token, nil
	}

	token, ttl, err := m.fetcher(ctx)
	if err != nil {
		return "", fmt.Errorf("falha ao obter token: %w", err)
	}
	m.token = token
	m.renewAt = m.now().Add(calculateWait(ttl))
	return token, nil
}

// Invalidate força a próxima chamada a buscar outro token (ex: target devolveu 401).
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

func calculateWait(ttl time.Duration) time.Duration {
	// Renova quando passar 80% do tempo de vida
	if ttl == 0 {
		return 5 * time.Minute // Fallback se a API não retornar expires_in
	}
	return time.Duration(float64(ttl) * 0.8)
}

// NewOAuth2Manager é um helper que cria o Manager já configurado para Client Credentials.
func NewOAuth2Manager(cfg config.TargetAuthConf) *Manager {
	return NewManager(NewOAuth2Fetcher(cfg, nil))
}

// NewOAuth2Fetcher cria a função de busca específica para o fluxo Client Credentials.
func NewOAuth2Fetcher(cfg config.TargetAuthConf, client *http.Client) TokenFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context) (string, time.Duration, error) {
		// 1. Form (application/x-www-form-urlencoded)
		data := url.Values{}
		data.Set("grant_type", "client_credentials")
		data.Set("client_id", cfg.ClientID)
		data.Set("client_secret", cfg.ClientSecret)
		if cfg.Scope != "" {
			data.Set("scope", cfg.Scope)
		}

		// 2. Request
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return "", 0, fmt.Errorf("erro ao criar request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		// 3. Executa
		resp, err := client.Do(req)
		if err != nil {
			return "", 0, fmt.Errorf("erro de conexão oauth: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return "", 0, fmt.Errorf("oauth provider retornou erro: %d", resp.StatusCode)
		}

		// 4. Parse
		var tokenResp tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return "", 0, fmt.Errorf("erro decode json token: %w", err)
		}
		if tokenResp.AccessToken == "" {
			return "", 0, ErrEmptyToken
		}

		return tokenResp.AccessToken, time.Duration(tokenResp.ExpiresIn) * time.Second, nil
	}
}

// Registry compartilha um Manager por credencial. Vive o processo inteiro,
// então os tokens sobrevivem a reloads de configuração.
type Registry struct {
	newManager func(config.TargetAuthConf) *Manager

	mu       sync.Mutex
	managers map[config.TargetAuthConf]*Manager
}

func NewRegistry() *Registry {
	return &Registry{
		newManager: NewOAuth2Manager,
		managers:   make(map[config.TargetAuthConf]*Manager),
	}
}

// For devolve o Manager da credencial, criando na primeira vez.
func (r *Registry) For(cfg config.TargetAuthConf) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[cfg]; ok {
		return m
	}
	m := r.newManager(cfg)
	r.managers[cfg] = m
	return m
}
