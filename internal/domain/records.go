package domain

import "time"

// Tercero is a row of the terceros table. Distributors are stored with
// TipoTercero "proveedor".
//
// The production table lives in Supabase; this model mirrors the columns the
// service writes so the local SQLite backend can migrate an equivalent table.
type Tercero struct {
	ID              int64     `json:"id"                         mapstructure:"id"               gorm:"primaryKey;autoIncrement"`
	TipoTercero     string    `json:"tipo_tercero"               mapstructure:"tipo_tercero"     gorm:"type:varchar(32);not null;index"`
	TipoDocumento   string    `json:"tipo_documento"             mapstructure:"tipo_documento"   gorm:"type:varchar(8);not null"`
	NumeroDocumento string    `json:"numero_documento"           mapstructure:"numero_documento" gorm:"type:varchar(32);not null;index"`
	RazonSocial     string    `json:"razon_social,omitempty"     mapstructure:"razon_social"     gorm:"type:varchar(255)"`
	Nombres         string    `json:"nombres,omitempty"          mapstructure:"nombres"          gorm:"type:varchar(255)"`
	Apellidos       string    `json:"apellidos,omitempty"        mapstructure:"apellidos"        gorm:"type:varchar(255)"`
	TelefonoFijo    string    `json:"telefono_fijo,omitempty"    mapstructure:"telefono_fijo"    gorm:"type:varchar(32)"`
	TelefonoCelular string    `json:"telefono_celular,omitempty" mapstructure:"telefono_celular" gorm:"type:varchar(32)"`
	Direccion       string    `json:"direccion,omitempty"        mapstructure:"direccion"        gorm:"type:varchar(255)"`
	Email           string    `json:"email,omitempty"            mapstructure:"email"            gorm:"type:varchar(255)"`
	CreatedAt       time.Time `json:"created_at"                 mapstructure:"-"`
}

// TableName returns the database table name for Tercero.
func (Tercero) TableName() string { return "terceros" }

// Producto is a row of the productos table.
type Producto struct {
	ID          int64     `json:"id"           mapstructure:"id"           gorm:"primaryKey;autoIncrement"`
	SKU         string    `json:"sku"          mapstructure:"sku"          gorm:"type:varchar(64);not null;uniqueIndex"`
	Nombre      string    `json:"nombre"       mapstructure:"nombre"       gorm:"type:varchar(255);not null"`
	PrecioVenta float64   `json:"precio_venta" mapstructure:"precio_venta" gorm:"not null"`
	Cantidad    int       `json:"cantidad"     mapstructure:"cantidad"     gorm:"not null"`
	ProveedorID int64     `json:"proveedor_id" mapstructure:"proveedor_id" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"   mapstructure:"-"`
}

// TableName returns the database table name for Producto.
func (Producto) TableName() string { return "productos" }
