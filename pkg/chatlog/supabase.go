package chatlog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/supabase-community/postgrest-go"
)

// SupabaseSink inserts records into a Supabase table through its PostgREST API.
// Only the message and reply columns are written; the table's defaults fill
// in the rest.
type SupabaseSink struct {
	client *postgrest.Client
	table  string
}

// NewSupabaseSink creates a sink for the project at baseURL
// (e.g. "https://xyz.supabase.co") authenticated with key.
func NewSupabaseSink(baseURL, key, table string) (*SupabaseSink, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("supabase key is required")
	}
	if table == "" {
		table = DefaultTable
	}

	restURL := strings.TrimRight(baseURL, "/") + "/rest/v1"
	if _, err := url.ParseRequestURI(restURL); err != nil {
		return nil, fmt.Errorf("invalid supabase URL %q: %w", baseURL, err)
	}

	client := postgrest.NewClient(restURL, "public", map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	})

	return &SupabaseSink{client: client, table: table}, nil
}

type supabaseRow struct {
	Message string `json:"message"`
	Reply   string `json:"reply"`
}

// Append implements Sink. The PostgREST client takes no context, so a
// cancelled ctx abandons the insert rather than aborting it.
func (s *SupabaseSink) Append(ctx context.Context, rec Record) error {
	row := supabaseRow{Message: rec.Message, Reply: rec.Reply}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.client.From(s.table).Insert(row, false, "", "minimal", "").Execute()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("insert row: %w", ctx.Err())
	}
}

// Name implements Sink.
func (s *SupabaseSink) Name() string {
	return "supabase"
}

// Close implements Sink.
func (s *SupabaseSink) Close() error {
	return nil
}
