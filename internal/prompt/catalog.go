// Package prompt renders the natural-language prompts sent to the model.
// Texts live in the embedded catalog.yaml.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Detail selects the role detail used for a registration reply.
type Detail string

const (
	DetailNeedMoreData       Detail = "need_more_data"
	DetailMissingCredentials Detail = "missing_credentials"
	DetailPersistenceError   Detail = "persistence_error"
	DetailCreated            Detail = "created"
)

// ErrIncomplete is returned by Parse when a required text is absent.
var ErrIncomplete = errors.New("prompt catalog incomplete")

// Catalog holds every prompt text. Use Default for the embedded one.
type Catalog struct {
	General struct {
		System string `yaml:"system"`
		Turn   string `yaml:"turn"`
	} `yaml:"general"`
	Classifier   string `yaml:"classifier"`
	Completeness string `yaml:"completeness"`
	Extraction   string `yaml:"extraction"`
	Registration struct {
		Turn           string            `yaml:"turn"`
		Details        map[Detail]string `yaml:"details"`
		Personas       map[string]string `yaml:"personas"`
		DefaultPersona string            `yaml:"default_persona"`
	} `yaml:"registration"`
}

// Parse decodes a catalog document and checks that every text is present.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	required := map[string]string{
		"general.system":               c.General.System,
		"general.turn":                 c.General.Turn,
		"classifier":                   c.Classifier,
		"completeness":                 c.Completeness,
		"extraction":                   c.Extraction,
		"registration.turn":            c.Registration.Turn,
		"registration.default_persona": c.Registration.DefaultPersona,
	}
	for _, d := range []Detail{DetailNeedMoreData, DetailMissingCredentials, DetailPersistenceError, DetailCreated} {
		required["registration.details."+string(d)] = c.Registration.Details[d]
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s", ErrIncomplete, k)
		}
	}
	return nil
}

var defaultCatalog = mustParse(embedded)

func mustParse(b []byte) *Catalog {
	c, err := Parse(b)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the embedded catalog.
func Default() *Catalog { return defaultCatalog }

// fill replaces {name} placeholders. {nl} is a newline, which lets folded
// YAML scalars carry paragraph breaks.
func fill(tmpl string, kv ...string) string {
	kv = append(kv, "{nl}", "\n")
	return strings.NewReplacer(kv...).Replace(tmpl)
}

// GeneralPrompt renders the general-chat prompt around the persona.
func (c *Catalog) GeneralPrompt(history, message string) string {
	return fill(c.General.Turn,
		"{system}", c.General.System,
		"{history}", history,
		"{message}", message,
	)
}

// ClassifyPrompt renders the intent-classification prompt.
func (c *Catalog) ClassifyPrompt(history, message string) string {
	return fill(c.Classifier, "{history}", history, "{message}", message)
}

// CompletenessPrompt renders the completeness check for entity under policy. Only
// the raw message is included.
func (c *Catalog) CompletenessPrompt(entity, policy, message string) string {
	return fill(c.Completeness,
		"{entity}", entity,
		"{policy}", policy,
		"{message}", message,
	)
}

// ExtractionPrompt renders the field-extraction prompt for entity.
func (c *Catalog) ExtractionPrompt(entity, message string) string {
	return fill(c.Extraction, "{entity}", entity, "{message}", message)
}

// Registration holds the inputs of a registration reply.
type Registration struct {
	Entity  string
	Detail  Detail
	Message string
	Missing []string // need_more_data only
	History string   // need_more_data only
}

// RegistrationPrompt renders the reply prompt for one slot-filling outcome.
func (c *Catalog) RegistrationPrompt(r Registration) string {
	persona, ok := c.Registration.Personas[r.Entity]
	if !ok {
		persona = c.Registration.DefaultPersona
	}
	detail := fill(c.Registration.Details[r.Detail],
		"{entity}", r.Entity,
		"{fields}", strings.Join(r.Missing, ", "),
		"{history}", r.History,
	)
	return fill(c.Registration.Turn,
		"{persona}", persona,
		"{detail}", detail,
		"{message}", r.Message,
	)
}
