// Package render turns stored liquid templates into per-recipient HTML and
// text bodies. Compiled templates are cached with a TTL so a hot campaign
// does not recompile the same template for every recipient.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/ignite/campaign-engine/internal/domain"
)

// ErrTemplateNotFound is returned when the referenced template row is gone.
var ErrTemplateNotFound = errors.New("template not found")

// Result is the rendered output for one recipient.
type Result struct {
	HTML string
	Text string
}

// TemplateSource fetches template rows. Implementations return
// ErrTemplateNotFound for unknown ids.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error)
}

// Renderer renders a stored template against recipient variables.
type Renderer struct {
	source TemplateSource
	engine *liquid.Engine
	cache  *cache
}

// NewRenderer creates a renderer with the given compiled-template cache TTL.
func NewRenderer(source TemplateSource, ttl time.Duration) *Renderer {
	return &Renderer{
		source: source,
		engine: liquid.NewEngine(),
		cache:  newCache(ttl),
	}
}

// SetClock overrides the cache clock, for tests.
func (r *Renderer) SetClock(now func() time.Time) { r.cache.now = now }

type compiled struct {
	html *liquid.Template
	text *liquid.Template
}

// Render produces the HTML and text bodies for one recipient. vars is
// exposed directly as liquid bindings ({{ first_name }} etc.).
func (r *Renderer) Render(ctx context.Context, templateID uuid.UUID, vars map[string]string) (Result, error) {
	c, err := r.compiledFor(ctx, templateID)
	if err != nil {
		return Result{}, err
	}

	bindings := make(liquid.Bindings, len(vars))
	for k, v := range vars {
		bindings[k] = v
	}

	html, err := c.html.Render(bindings)
	if err != nil {
		return Result{}, fmt.Errorf("render html for template %s: %w", templateID, err)
	}
	var text []byte
	if c.text != nil {
		text, err = c.text.Render(bindings)
		if err != nil {
			return Result{}, fmt.Errorf("render text for template %s: %w", templateID, err)
		}
	}
	return Result{HTML: string(html), Text: string(text)}, nil
}

func (r *Renderer) compiledFor(ctx context.Context, templateID uuid.UUID) (*compiled, error) {
	if c, ok := r.cache.get(templateID); ok {
		return c, nil
	}

	tmpl, err := r.source.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	html, err := r.engine.ParseTemplate([]byte(tmpl.HTMLBody))
	if err != nil {
		return nil, fmt.Errorf("parse html body of template %s: %w", templateID, err)
	}
	c := &compiled{html: html}
	if tmpl.TextBody != "" {
		text, err := r.engine.ParseTemplate([]byte(tmpl.TextBody))
		if err != nil {
			return nil, fmt.Errorf("parse text body of template %s: %w", templateID, err)
		}
		c.text = text
	}

	r.cache.put(templateID, c)
	return c, nil
}
