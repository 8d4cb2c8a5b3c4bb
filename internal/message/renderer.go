// Package message renders outbound campaign text with Liquid templates so
// operators can personalize copy per recipient.
package message

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// greetingTemplate prefixes every campaign send. Recipients without a stored
// name fall back to a neutral salutation.
const greetingTemplate = `Hi {{ name | default: "there" }}, {{ body }}`

// Renderer compiles and caches Liquid templates. Safe for concurrent use.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewRenderer constructs a Renderer with the filters campaign copy relies on.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Render executes the template source against the given bindings.
func (r *Renderer) Render(source string, bindings map[string]interface{}) (string, error) {
	tpl, err := r.template(source)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Personalize produces the per-recipient text handed to the vendor:
// "Hi <name>, <body>", with "there" when the name is blank.
func (r *Renderer) Personalize(name, body string) (string, error) {
	return r.Render(greetingTemplate, map[string]interface{}{
		"name": name,
		"body": body,
	})
}

func (r *Renderer) template(source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	r.cache.Store(source, tpl)
	return tpl, nil
}
