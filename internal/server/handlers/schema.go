package handlers

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/server/dto"
)

// SchemaHandler publishes the JSON Schema of the persisted cart value, for
// tools reading the storage directly.
type SchemaHandler struct {
	schema *jsonschema.Schema
}

// NewSchemaHandler reflects the schema once.
func NewSchemaHandler() *SchemaHandler {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.Reflect([]cart.LineItem{})
	s.Title = "Cart"
	s.Description = "Value stored under " + cart.StorageKey + ":<session>, in insertion order. Item ids are unique."
	return &SchemaHandler{schema: s}
}

// Cart returns the schema.
func (h *SchemaHandler) Cart(_ context.Context, _ *dto.CartSchemaRequest) (*jsonschema.Schema, error) {
	return h.schema, nil
}
