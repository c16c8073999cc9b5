// Package mgmt es el cliente HTTP del management API del identity provider.
// Una sola operación: PATCH de la configuración de auth con los campos de
// templates traducidos. El destino se valida contra un allowlist de hosts
// antes de cualquier dispatch.
package mgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrHostNotAllowed: el BaseURL apunta fuera del allowlist.
	ErrHostNotAllowed = errors.New("management host not in allowlist")
	// ErrUnreachable: timeout o abort de red antes de una respuesta.
	ErrUnreachable = errors.New("management endpoint unreachable")
)

// UpstreamError es una respuesta non-2xx del management API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("management API returned %d", e.Status)
}

// Config configura el cliente.
type Config struct {
	// BaseURL del management API, ej: https://api.provider.example
	BaseURL string
	// ProjectRef identifica el proyecto en el provider.
	ProjectRef string
	// Token es la credencial de management. Nunca se loguea.
	Token string
	// AllowedHosts es el allowlist fijo de destinos.
	AllowedHosts []string
	// Timeout acota la única llamada de red por request.
	Timeout time.Duration
}

// Client habla con el management API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New valida la configuración (incluido el allowlist de host) y construye
// el cliente. El chequeo de host se repite por llamada: la config puede
// recargarse en caliente en el futuro.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if err := checkHost(cfg.BaseURL, cfg.AllowedHosts); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func checkHost(baseURL string, allowed []string) error {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrHostNotAllowed
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allowed {
		if host == strings.ToLower(strings.TrimSpace(a)) {
			return nil
		}
	}
	return ErrHostNotAllowed
}

// PatchAuthConfig aplica el patch de campos sobre la config de auth del
// proyecto. Devuelve el status HTTP del provider en éxito. Errores:
// ErrHostNotAllowed antes de dispatch, ErrUnreachable (envuelto) en
// timeout/abort, *UpstreamError en respuestas non-2xx.
func (c *Client) PatchAuthConfig(ctx context.Context, patch map[string]string) (int, error) {
	if err := checkHost(c.cfg.BaseURL, c.cfg.AllowedHosts); err != nil {
		return 0, err
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return 0, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/projects/" + url.PathEscape(c.cfg.ProjectRef) + "/config/auth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cuerpo acotado solo para diagnóstico; el caller lo scrubbea
		// antes de persistir.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, &UpstreamError{Status: resp.StatusCode, Body: string(b)}
	}
	return resp.StatusCode, nil
}
