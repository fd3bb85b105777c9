package domain

// Status is the outcome reported by the slot-filling handlers.
type Status string

const (
	StatusNeedMoreData Status = "need_more_data"
	StatusCreated      Status = "created"
	StatusError        Status = "error"
)

// Envelope is the JSON body returned by the chat endpoints. General chat
// replies carry only Reply and, on the routed endpoint, UserIntention.
type Envelope struct {
	UserIntention Intent           `json:"userintention,omitempty" example:"Create_distribuitor"`
	Status        Status           `json:"status,omitempty" example:"created"`
	Reply         string           `json:"reply" example:"¡Listo! El distribuidor quedó registrado."`
	MissingFields []string         `json:"missing_fields,omitempty"`
	Error         string           `json:"error,omitempty"`
	Extracted     Extraction       `json:"extracted,omitempty" swaggertype:"object"`
	Data          []map[string]any `json:"data,omitempty" swaggertype:"array,object"`
}
