package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/tbourn/don-confiado-backend/internal/config"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 64 << 10

// Supabase inserts rows through the project's PostgREST endpoint.
type Supabase struct {
	baseURL string
	key     string
	schema  string
	timeout time.Duration
	base    http.RoundTripper
}

// NewSupabase returns a REST persister. client supplies the transport and,
// when set, the per-insert timeout; a nil client uses the default transport
// and cfg.Timeout.
func NewSupabase(cfg config.SupabaseConfig, client *http.Client) *Supabase {
	s := &Supabase{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		key:     strings.TrimSpace(cfg.ServiceRoleKey),
		schema:  cfg.Schema,
		timeout: cfg.Timeout,
		base:    http.DefaultTransport,
	}
	if client != nil {
		if client.Transport != nil {
			s.base = client.Transport
		}
		if client.Timeout > 0 {
			s.timeout = client.Timeout
		}
	}
	return s
}

// Ready implements Persister.
func (s *Supabase) Ready() error {
	if s.baseURL == "" || s.key == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Insert implements Persister with POST /rest/v1/{table} and
// Prefer: return=representation.
func (s *Supabase) Insert(ctx context.Context, table string, record map[string]any) ([]map[string]any, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// postgrest-go builds requests without a context, so each insert gets
	// its own client whose transport carries ctx.
	ex := &exchange{ctx: ctx, base: s.base}
	client := postgrest.NewClient(s.baseURL+"/rest/v1", s.schema, map[string]string{
		"apikey":        s.key,
		"Authorization": "Bearer " + s.key,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("supabase url: %w", client.ClientError)
	}
	client.Transport.Parent = ex

	body, _, err := client.From(table).Insert(record, false, "", "representation", "").Execute()
	if ex.status >= http.StatusBadRequest {
		return nil, restError(ex.status, ex.body)
	}
	if err != nil {
		return nil, fmt.Errorf("supabase insert %s: %w", table, err)
	}

	var rows []map[string]any
	if len(bytes.TrimSpace(body)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode supabase response: %w", err)
	}
	return rows, nil
}

// exchange binds the single request of an insert to ctx and keeps the
// status and error body, which postgrest-go folds into a plain string.
type exchange struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
	body   []byte
}

func (e *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := e.base.RoundTrip(req.WithContext(e.ctx))
	if err != nil {
		return nil, err
	}
	e.status = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		e.body = raw
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}
	return resp, nil
}

func restError(status int, raw []byte) error {
	pe := &PersistenceError{Status: status}
	if err := json.Unmarshal(raw, pe); err != nil || pe.Message == "" {
		pe.Message = strings.TrimSpace(string(raw))
		if pe.Message == "" {
			pe.Message = http.StatusText(status)
		}
	}
	if status == http.StatusConflict || pe.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrDuplicate, pe)
	}
	return pe
}
