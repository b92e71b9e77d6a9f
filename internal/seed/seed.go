// Package seed populates a running commercecore server with a small demo
// catalog through its HTTP API: a category tree, products with variants and
// stock, and category links. Re-running against a seeded server reuses the
// existing records by handle.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/httpclient"
	"github.com/utafrali/commercecore/pkg/slug"
)

// Doer sends a request. *httpclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Report counts what a run created. Reused records are not counted.
type Report struct {
	Categories int
	Products   int
	Variants   int
	Published  int
}

// Seeder posts the demo catalog to BaseURL.
type Seeder struct {
	client  Doer
	baseURL string
	logger  *slog.Logger
	catalog []CategoryDef
}

// New creates a Seeder for the server at baseURL, e.g. http://localhost:8080.
func New(client Doer, baseURL string, logger *slog.Logger) *Seeder {
	return &Seeder{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		catalog: DefaultCatalog(),
	}
}

// WithCatalog replaces the demo catalog.
func (s *Seeder) WithCatalog(c []CategoryDef) *Seeder {
	s.catalog = c
	return s
}

// Run seeds the whole catalog, stopping at the first failure.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, def := range s.catalog {
		if err := s.seedCategory(ctx, def, "", &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Seeder) seedCategory(ctx context.Context, def CategoryDef, parentID string, report *Report) error {
	handle := slug.Generate(def.Name)
	var cat idView
	created, err := s.createOrFetch(ctx,
		"/api/v1/categories", map[string]any{"name": def.Name, "parent_id": parentID},
		"/api/v1/categories/handle/"+handle, &cat)
	if err != nil {
		return fmt.Errorf("seed category %q: %w", def.Name, err)
	}
	if created {
		report.Categories++
	}
	s.logger.Info("category ready", slog.String("name", def.Name), slog.String("id", cat.ID), slog.Bool("created", created))

	for _, p := range def.Products {
		if err := s.seedProduct(ctx, p, cat.ID, report); err != nil {
			return err
		}
	}
	for _, child := range def.Children {
		if err := s.seedCategory(ctx, child, cat.ID, report); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedProduct(ctx context.Context, def ProductDef, categoryID string, report *Report) error {
	handle := slug.Generate(def.Title)
	var p idView
	created, err := s.createOrFetch(ctx,
		"/api/v1/products", map[string]any{
			"title":        def.Title,
			"description":  def.Description,
			"vendor":       def.Vendor,
			"product_type": def.Type,
			"currency":     Currency,
			"tags":         def.Tags,
		},
		"/api/v1/products/handle/"+handle, &p)
	if err != nil {
		return fmt.Errorf("seed product %q: %w", def.Title, err)
	}
	if !created {
		s.logger.Info("product exists, skipping", slog.String("title", def.Title))
		return nil
	}
	report.Products++

	base := "/api/v1/products/" + p.ID
	for _, v := range variantsFor(def) {
		if err := s.send(ctx, http.MethodPost, base+"/variants", v, nil); err != nil {
			return fmt.Errorf("seed variant %s: %w", v["sku"], err)
		}
		report.Variants++
	}
	if err := s.send(ctx, http.MethodPut, base+"/categories/"+categoryID, nil, nil); err != nil {
		return fmt.Errorf("assign %q to category: %w", def.Title, err)
	}
	if !def.Draft {
		if err := s.send(ctx, http.MethodPost, base+"/publish", nil, nil); err != nil {
			return fmt.Errorf("publish %q: %w", def.Title, err)
		}
		report.Published++
	}
	s.logger.Info("product seeded", slog.String("title", def.Title), slog.String("id", p.ID))
	return nil
}

type idView struct {
	ID string `json:"id"`
}

// createOrFetch POSTs body to createPath. A 409 means the record is already
// there, so it is loaded from fetchPath instead.
func (s *Seeder) createOrFetch(ctx context.Context, createPath string, body any, fetchPath string, out any) (bool, error) {
	err := s.send(ctx, http.MethodPost, createPath, body, out)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return false, err
	}
	return false, s.send(ctx, http.MethodGet, fetchPath, nil, out)
}

// send issues one API call and decodes the data envelope into out.
func (s *Seeder) send(ctx context.Context, method, path string, body, out any) error {
	target := method + " " + path
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s: %w", target, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request %s: %w", target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return httpclient.ParseResponseError(resp, target)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return nil
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", target, err)
	}
	return nil
}
