package handlers

import (
	"context"

	"github.com/maruel/plancart/internal/catalog"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/server/dto"
)

// PlansHandler lists the catalog.
type PlansHandler struct {
	source *catalog.Source
	locale i18n.Locale
}

// NewPlansHandler creates a PlansHandler.
func NewPlansHandler(source *catalog.Source, locale i18n.Locale) *PlansHandler {
	return &PlansHandler{source: source, locale: locale}
}

// List returns the plans in catalog order.
func (h *PlansHandler) List(_ context.Context, _ *dto.ListPlansRequest) (*dto.PlansResponse, error) {
	c := h.source.Current()
	resp := &dto.PlansResponse{Currency: c.Currency, Plans: make([]dto.Plan, len(c.Plans))}
	for i := range c.Plans {
		resp.Plans[i] = planToDTO(&c.Plans[i], h.locale)
	}
	return resp, nil
}
