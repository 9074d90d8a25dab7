package gateway

import (
	"fmt"
	"strings"
	"sync"
)

// TemplateKind names a message template known to the providers.
type TemplateKind string

const (
	TemplateDoseReminder TemplateKind = "doseReminder"
	TemplateWelcome      TemplateKind = "welcome"
	TemplateGenericAlert TemplateKind = "genericAlert"
)

// Template describes a pre-approved provider template. Params fixes the
// order of the variables sent to WhatsApp; Body is the plain text used for
// SMS with {{param}} placeholders.
type Template struct {
	Kind         TemplateKind
	ProviderName string
	Params       []string
	Body         string
}

// Catalog holds the templates available to the dispatcher.
type Catalog struct {
	mu        sync.RWMutex
	templates map[TemplateKind]*Template
}

// NewCatalog returns a catalog with the built-in templates registered.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[TemplateKind]*Template)}
	for _, t := range builtIn {
		c.Register(t)
	}
	return c
}

var builtIn = []Template{
	{
		Kind:         TemplateDoseReminder,
		ProviderName: "recordatorio_medicamento",
		Params:       []string{"name", "medicine", "dosage", "time"},
		Body:         "Hola {{name}}, es momento de tomar {{medicine}} ({{dosage}}) a las {{time}}.",
	},
	{
		Kind:         TemplateWelcome,
		ProviderName: "bienvenida_notificaciones",
		Params:       []string{"name"},
		Body:         "Hola {{name}}, activaste los recordatorios por este medio. Responde STOP para darte de baja.",
	},
	{
		Kind:         TemplateGenericAlert,
		ProviderName: "alerta_general",
		Params:       []string{"name", "message"},
		Body:         "Hola {{name}}: {{message}}",
	},
}

// Register adds or replaces a template.
func (c *Catalog) Register(t Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.Kind] = &t
}

func (c *Catalog) Get(kind TemplateKind) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[kind]
	return t, ok
}

// Render resolves the ordered parameter list and the SMS body. Every
// parameter must be supplied.
func (c *Catalog) Render(kind TemplateKind, vars map[string]string) (Rendered, error) {
	t, ok := c.Get(kind)
	if !ok {
		return Rendered{}, fmt.Errorf("template %q not found", kind)
	}

	params := make([]string, 0, len(t.Params))
	body := t.Body
	for _, name := range t.Params {
		v, ok := vars[name]
		if !ok || strings.TrimSpace(v) == "" {
			return Rendered{}, fmt.Errorf("template %q: variable %q is required", kind, name)
		}
		params = append(params, v)
		body = strings.ReplaceAll(body, "{{"+name+"}}", v)
	}
	return Rendered{Template: t, Params: params, Body: body}, nil
}
