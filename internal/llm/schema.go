package llm

import (
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// Type is a JSON Schema primitive.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Property is a named member of an object schema. Properties keep
// declaration order so both providers see fields in the same order.
type Property struct {
	Name   string
	Schema *Schema
}

// Schema is a provider-neutral description of a structured response.
type Schema struct {
	Title       string
	Description string
	Type        Type
	Properties  []Property
	Required    []string
	Items       *Schema
	Enum        []string
}

// Genai converts s for the Gemini ResponseSchema field.
func (s *Schema) Genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Title:       s.Title,
		Description: s.Description,
		Type:        genaiType(s.Type),
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.Genai(),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		out.PropertyOrdering = make([]string, 0, len(s.Properties))
		for _, p := range s.Properties {
			out.Properties[p.Name] = p.Schema.Genai()
			out.PropertyOrdering = append(out.PropertyOrdering, p.Name)
		}
	}
	return out
}

func genaiType(t Type) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// JSONSchema converts s to a JSON Schema document for providers that accept
// response_format=json_schema. Objects are closed (additionalProperties=false).
func (s *Schema) JSONSchema() *jsonschema.Schema {
	if s == nil {
		return nil
	}
	out := &jsonschema.Schema{
		Title:       s.Title,
		Description: s.Description,
		Type:        string(s.Type),
		Required:    s.Required,
		Items:       s.Items.JSONSchema(),
	}
	for _, e := range s.Enum {
		out.Enum = append(out.Enum, e)
	}
	if s.Type == TypeObject {
		out.Properties = jsonschema.NewProperties()
		for _, p := range s.Properties {
			out.Properties.Set(p.Name, p.Schema.JSONSchema())
		}
		out.AdditionalProperties = jsonschema.FalseSchema
	}
	return out
}

// CompletenessSchema is the response shape of a completeness check:
// {is_complete: bool, missing_fields: [enum]}.
func CompletenessSchema(title string, fields []string) *Schema {
	return &Schema{
		Title: title,
		Type:  TypeObject,
		Properties: []Property{
			{Name: "is_complete", Schema: &Schema{Type: TypeBoolean}},
			{Name: "missing_fields", Schema: &Schema{
				Type:  TypeArray,
				Items: &Schema{Type: TypeString, Enum: fields},
			}},
		},
		Required: []string{"is_complete", "missing_fields"},
	}
}

// ExtractionSchema describes every field of fs with no required members:
// absent fields are expected to be omitted.
func ExtractionSchema(title string, fs domain.FieldSchema) *Schema {
	s := &Schema{
		Title:       title,
		Description: "Extrae unicamente los campos que el usuario proporciona. No inventes valores.",
		Type:        TypeObject,
	}
	for _, f := range fs.Fields {
		s.Properties = append(s.Properties, Property{
			Name: f.Name,
			Schema: &Schema{
				Type:        fieldType(f.Type),
				Description: f.Description,
				Enum:        f.Enum,
			},
		})
	}
	return s
}

func fieldType(t domain.FieldType) Type {
	switch t {
	case domain.TypeNumber:
		return TypeNumber
	case domain.TypeInteger:
		return TypeInteger
	default:
		return TypeString
	}
}

// IntentSchema is the response shape of the intent classifier.
func IntentSchema(labels []string) *Schema {
	return &Schema{
		Title: "IntentClassification",
		Type:  TypeObject,
		Properties: []Property{
			{Name: "intent", Schema: &Schema{Type: TypeString, Enum: labels}},
		},
		Required: []string{"intent"},
	}
}
