package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context describes the subject of an estimate. Every field is optional.
type Context struct {
	Country     string   `json:"country,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Headlines   []string `json:"headlines,omitempty"`
}

// Request is the payload rendered into the user message.
type Request struct {
	MissingFields []Field `json:"missing_fields"`
	Context       Context `json:"context"`
}

// Template names.
const (
	TemplateSystem  = "system"
	TemplateGapFill = "gap_fill"
)

const maxHeadlines = 10

var builtinTemplates = map[string]string{
	TemplateSystem: `You are an expert in modern slavery risk assessment and supply chain compliance. ` +
		`Estimate numerical risk values from your knowledge of country conditions, industry practices and company disclosures. ` +
		`Answer with valid JSON only.`,

	TemplateGapFill: `Estimate the missing values for this assessment.

Company: {{default "not specified" .Context.CompanyName}}
Country: {{default "not specified" .Context.Country}}
Industry: {{default "not specified" .Context.Industry}}
{{- if .Context.Headlines}}

Recent headlines:
{{- range .Context.Headlines}}
- {{truncate 200 .}}
{{- end}}
{{- end}}

Fields:
{{- range .Fields}}
- {{.Name}}: number from {{.Min}} to {{.Max}}. {{.Description}}
{{- end}}

Request:
{{json .Request}}

Return one JSON object whose keys are exactly the requested field names, plus an optional "reasoning" string. Omit any value you cannot estimate.`,
}

type promptField struct {
	Name        Field
	Min         float64
	Max         float64
	Description string
}

type promptData struct {
	Context Context
	Fields  []promptField
	Request Request
}

// PromptManager renders the oracle prompts from named templates.
type PromptManager struct {
	mu        sync.RWMutex
	raw       map[string]string
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewPromptManager returns a manager with the built-in templates loaded.
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		raw:       make(map[string]string),
		templates: make(map[string]*template.Template),
		funcMap:   defaultFuncMap(),
	}
	for name, body := range builtinTemplates {
		if err := pm.RegisterTemplate(name, body); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// RegisterTemplate adds or replaces a template.
func (pm *PromptManager) RegisterTemplate(name, body string) error {
	if name == "" {
		return errors.InvalidParam("template name is required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.InvalidParam("template body is required").WithDetail(name)
	}
	parsed, err := template.New(name).Funcs(pm.funcMap).Parse(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfiguration, "parse prompt template").WithDetail(name)
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.raw[name] = body
	pm.templates[name] = parsed
	return nil
}

// Templates lists the registered template names.
func (pm *PromptManager) Templates() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	names := make([]string, 0, len(pm.templates))
	for n := range pm.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template with data.
func (pm *PromptManager) Render(name string, data interface{}) (string, error) {
	pm.mu.RLock()
	t, ok := pm.templates[name]
	pm.mu.RUnlock()
	if !ok {
		return "", errors.NotFound("prompt template not found").WithDetail(name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "render prompt template").WithDetail(name)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Build assembles the system and user messages for a gap-fill request.
func (pm *PromptManager) Build(fields []Field, c Context) ([]Message, error) {
	if len(c.Headlines) > maxHeadlines {
		c.Headlines = c.Headlines[:maxHeadlines]
	}
	data := promptData{
		Context: c,
		Request: Request{MissingFields: fields, Context: c},
	}
	for _, f := range fields {
		b, _ := f.Bounds()
		data.Fields = append(data.Fields, promptField{Name: f, Min: b.Min, Max: b.Max, Description: f.description()})
	}

	system, err := pm.Render(TemplateSystem, data)
	if err != nil {
		return nil, err
	}
	user, err := pm.Render(TemplateGapFill, data)
	if err != nil {
		return nil, err
	}
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, nil
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"join":     strings.Join,
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"truncate": templateTruncate,
		"default":  templateDefault,
		"json":     templateJSON,
	}
}

func templateTruncate(maxLen int, s string) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func templateDefault(defaultVal, actual string) string {
	if strings.TrimSpace(actual) == "" {
		return defaultVal
	}
	return actual
}

func templateJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return string(b), nil
}
