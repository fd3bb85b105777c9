package domain

import "strings"

// Intent is the closed set of labels the classifier may return. The string
// values are part of the public response contract.
type Intent string

const (
	IntentCreateDistributor Intent = "Create_distribuitor"
	IntentCreateProduct     Intent = "Create_product"
	IntentOther             Intent = "Other"
)

// Intents lists every label in the order presented to the classifier.
func Intents() []string {
	return []string{string(IntentCreateDistributor), string(IntentCreateProduct), string(IntentOther)}
}

// ParseIntent maps a raw label to an Intent. Anything unrecognized routes to
// general chat.
func ParseIntent(s string) Intent {
	switch strings.TrimSpace(s) {
	case string(IntentCreateDistributor):
		return IntentCreateDistributor
	case string(IntentCreateProduct):
		return IntentCreateProduct
	default:
		return IntentOther
	}
}
