// Package mikrotik implementa el corte y la reposición del servicio sobre
// la API REST de RouterOS: la dirección del abonado entra o sale de una
// address-list de moroso que el firewall del router bloquea.
package mikrotik

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// Credentials acceso al router, releído en cada operación para permitir
// cambios en caliente
type Credentials struct {
	Host        string
	User        string
	Password    string
	AddressList string
}

// Router cliente del RouterOS del operador
type Router struct {
	creds  func() Credentials
	client *http.Client
	log    *logger.Logger
}

// New crea el cliente del router
func New(creds func() Credentials, log *logger.Logger) *Router {
	return &Router{
		creds:  creds,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

type addressListEntry struct {
	ID      string `json:".id"`
	Address string `json:"address"`
	List    string `json:"list"`
	Comment string `json:"comment,omitempty"`
}

func (r *Router) do(ctx context.Context, method, path string, payload any, out any) error {
	creds := r.creds()
	if creds.Host == "" {
		return fmt.Errorf("mikrotik: router host is not configured")
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("mikrotik: failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("http://%s/rest%s", creds.Host, path), body)
	if err != nil {
		return fmt.Errorf("mikrotik: failed to build request: %w", err)
	}
	req.SetBasicAuth(creds.User, creds.Password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("mikrotik: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mikrotik: unexpected status %d on %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("mikrotik: failed to decode response: %w", err)
		}
	}

	return nil
}

// findEntry busca el registro de la dirección en la address-list.
// Devuelve el ID interno o cadena vacía si no figura.
func (r *Router) findEntry(ctx context.Context, address string) (string, error) {
	creds := r.creds()
	path := fmt.Sprintf("/ip/firewall/address-list?address=%s&list=%s",
		url.QueryEscape(address), url.QueryEscape(creds.AddressList))

	var entries []addressListEntry
	if err := r.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return "", err
	}

	if len(entries) == 0 {
		return "", nil
	}
	return entries[0].ID, nil
}

// Suspend agrega la dirección a la address-list de morosos.
// Si ya figura, no hace nada: el corte es idempotente.
func (r *Router) Suspend(ctx context.Context, address string) error {
	existing, err := r.findEntry(ctx, address)
	if err != nil {
		return err
	}
	if existing != "" {
		r.log.Debugw("Address already in block list", "address", address)
		return nil
	}

	creds := r.creds()
	entry := addressListEntry{
		Address: address,
		List:    creds.AddressList,
		Comment: "Corte automático por falta de pago",
	}

	if err := r.do(ctx, http.MethodPost, "/ip/firewall/address-list", entry, nil); err != nil {
		return err
	}

	r.log.Infow("Address added to block list", "address", address, "list", creds.AddressList)
	return nil
}

// Restore quita la dirección de la address-list de morosos.
// Si no figura, no hace nada.
func (r *Router) Restore(ctx context.Context, address string) error {
	existing, err := r.findEntry(ctx, address)
	if err != nil {
		return err
	}
	if existing == "" {
		r.log.Debugw("Address not present in block list", "address", address)
		return nil
	}

	if err := r.do(ctx, http.MethodDelete, "/ip/firewall/address-list/"+existing, nil, nil); err != nil {
		return err
	}

	r.log.Infow("Address removed from block list", "address", address)
	return nil
}

// Ping verifica la conectividad con el router consultando su identidad
func (r *Router) Ping(ctx context.Context) error {
	var out any
	return r.do(ctx, http.MethodGet, "/system/identity", nil, &out)
}
