package domain

// FieldType is the primitive type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
)

// Field describes one named slot of a FieldSchema.
type Field struct {
	Name        string
	Type        FieldType
	Enum        []string
	Description string
}

// FieldSchema is a closed set of fields plus the policy that decides when
// enough of them are present to create a record.
//
// A record is complete when every Required field is present and, if OneOf is
// non-empty, at least one OneOf group is fully present.
type FieldSchema struct {
	Name     string
	Fields   []Field
	Required []string
	OneOf    [][]string

	// Policy is the natural-language rendition of Required/OneOf given to the
	// model during the completeness check.
	Policy string
}

// FieldNames returns the schema's field names in declaration order.
func (s FieldSchema) FieldNames() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

// PolicyFields returns every field that takes part in the completeness
// policy, in declaration order. These are the values missing_fields may hold.
func (s FieldSchema) PolicyFields() []string {
	in := make(map[string]struct{})
	for _, n := range s.Required {
		in[n] = struct{}{}
	}
	for _, g := range s.OneOf {
		for _, n := range g {
			in[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(in))
	for _, f := range s.Fields {
		if _, ok := in[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// Has reports whether name is a field of s.
func (s FieldSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Check evaluates the completeness policy against a sanitized field mapping.
// Missing names are returned in declaration order.
func (s FieldSchema) Check(fields map[string]any) Completeness {
	present := func(n string) bool {
		v, ok := fields[n]
		return ok && ValidValue(v)
	}

	missing := make(map[string]struct{})
	for _, n := range s.Required {
		if !present(n) {
			missing[n] = struct{}{}
		}
	}

	if len(s.OneOf) > 0 {
		satisfied := false
		for _, g := range s.OneOf {
			all := true
			for _, n := range g {
				if !present(n) {
					all = false
					break
				}
			}
			if all {
				satisfied = true
				break
			}
		}
		if !satisfied {
			for _, g := range s.OneOf {
				for _, n := range g {
					if !present(n) {
						missing[n] = struct{}{}
					}
				}
			}
		}
	}

	if len(missing) == 0 {
		return Complete{}
	}
	out := make([]string, 0, len(missing))
	for _, f := range s.Fields {
		if _, ok := missing[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return Incomplete{Missing: out}
}

// DistributorSchema describes a supplier ("tercero" of type proveedor).
var DistributorSchema = FieldSchema{
	Name: "distribuidor",
	Fields: []Field{
		{Name: "tipo_documento", Type: TypeString, Enum: []string{"CC", "NIT", "CE"}, Description: "Tipo de documento"},
		{Name: "numero_documento", Type: TypeString, Description: "Número de documento"},
		{Name: "razon_social", Type: TypeString, Description: "Razón social"},
		{Name: "nombres", Type: TypeString, Description: "Nombres"},
		{Name: "apellidos", Type: TypeString, Description: "Apellidos"},
		{Name: "telefono_fijo", Type: TypeString, Description: "Teléfono fijo"},
		{Name: "telefono_celular", Type: TypeString, Description: "Teléfono celular"},
		{Name: "direccion", Type: TypeString, Description: "Dirección"},
		{Name: "email", Type: TypeString, Description: "Correo electrónico"},
	},
	Required: []string{"tipo_documento", "numero_documento"},
	OneOf:    [][]string{{"razon_social"}, {"nombres", "apellidos"}},
	Policy:   "tipo_documento (CC/NIT/CE), numero_documento y (razon_social) o (nombres y apellidos)",
}

// ProductSchema describes an inventory product.
var ProductSchema = FieldSchema{
	Name: "producto",
	Fields: []Field{
		{Name: "sku", Type: TypeString, Description: "Código SKU"},
		{Name: "nombre", Type: TypeString, Description: "Nombre del producto"},
		{Name: "precio_venta", Type: TypeNumber, Description: "Precio de venta"},
		{Name: "cantidad", Type: TypeInteger, Description: "Cantidad en inventario"},
		{Name: "proveedor_id", Type: TypeInteger, Description: "Identificador del proveedor"},
	},
	Required: []string{"sku", "nombre", "precio_venta", "cantidad", "proveedor_id"},
	Policy:   "SKU, nombre, precio de venta, cantidad y proveedor (Nombre y/o documento del proveedor)",
}
