// Package message renders template text for a concrete group at dispatch
// time using the Liquid template language.
package message

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/broadsend/groupcast/internal/domain"
)

// Renderer compiles and caches Liquid templates. Rendering is lax: a
// template that fails to parse or render falls back to its raw text, since
// a wave must not stall on a typo in one template.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template, keyed by template id + text
}

// NewRenderer creates a renderer with the groupcast filter set.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ group.name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	engine.RegisterFilter("upcase", strings.ToUpper)
	engine.RegisterFilter("downcase", strings.ToLower)

	return &Renderer{engine: engine}
}

// Render produces the message text for a job. Bindings expose the group
// and the send date so templates can vary per destination.
func (r *Renderer) Render(tmpl domain.Template, job domain.Job) string {
	compiled, err := r.compiled(tmpl)
	if err != nil {
		log.Printf("[message.Renderer] template %s parse failed, sending raw text: %v", tmpl.ID, err)
		return tmpl.Text
	}

	now := time.Now()
	bindings := map[string]interface{}{
		"group": map[string]interface{}{
			"name": job.GroupName,
			"id":   job.GroupID,
		},
		"template": map[string]interface{}{
			"title": tmpl.Title,
		},
		"today": now.Format("2006-01-02"),
		"time":  now.Format("15:04"),
	}

	out, err := compiled.RenderString(bindings)
	if err != nil {
		log.Printf("[message.Renderer] template %s render failed, sending raw text: %v", tmpl.ID, err)
		return tmpl.Text
	}
	return out
}

func (r *Renderer) compiled(tmpl domain.Template) (*liquid.Template, error) {
	key := tmpl.ID + "\x00" + tmpl.Text
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}
	compiled, err := r.engine.ParseString(tmpl.Text)
	if err != nil {
		return nil, err
	}
	r.cache.Store(key, compiled)
	return compiled, nil
}
