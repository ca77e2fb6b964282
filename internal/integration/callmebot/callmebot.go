// Package callmebot implementa la mensajería de WhatsApp sobre la API
// gratuita de CallMeBot (https://www.callmebot.com).
package callmebot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

const apiURL = "https://api.callmebot.com/whatsapp.php"

// Messenger cliente de la API de CallMeBot.
// La clave se consulta en cada envío para poder rotarla en caliente.
type Messenger struct {
	apiKey func() string
	client *http.Client
	log    *logger.Logger
}

// New crea el cliente. apiKey devuelve la clave vigente; vacía significa
// no configurado.
func New(apiKey func() string, log *logger.Logger) *Messenger {
	return &Messenger{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// Configured indica si hay clave de API cargada
func (m *Messenger) Configured() bool {
	return m.apiKey() != ""
}

// Send entrega el mensaje por WhatsApp vía CallMeBot
func (m *Messenger) Send(ctx context.Context, phone, message string) error {
	key := m.apiKey()
	if key == "" {
		return fmt.Errorf("callmebot: %w", domain.ErrExternalServiceUnavailable)
	}

	params := url.Values{}
	params.Set("phone", phone)
	params.Set("text", message)
	params.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("callmebot: failed to build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("callmebot: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("callmebot: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// La API devuelve 200 también en algunos fallos; el cuerpo lo delata
	if strings.Contains(strings.ToLower(string(body)), "error") {
		return fmt.Errorf("callmebot: delivery rejected: %s", strings.TrimSpace(string(body)))
	}

	m.log.Debugw("CallMeBot message delivered", "phone", phone)
	return nil
}
