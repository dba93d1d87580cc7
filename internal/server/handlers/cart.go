package handlers

import (
	"context"

	"github.com/maruel/ksid"
	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/notify"
	"github.com/maruel/plancart/internal/server/dto"
)

// CartHandler serves the session's cart.
type CartHandler struct {
	carts  *Carts
	center *notify.Center
}

// NewCartHandler creates a CartHandler. center may be nil.
func NewCartHandler(carts *Carts, center *notify.Center) *CartHandler {
	return &CartHandler{carts: carts, center: center}
}

// Get returns the cart.
func (h *CartHandler) Get(ctx context.Context, session ksid.ID, _ *dto.GetCartRequest) (*dto.CartResponse, error) {
	cs := h.carts.Get(ctx, session)
	defer cs.Release()
	return h.respond(cs, nil), nil
}

// AddItem adds one unit of an item, creating the line if needed.
func (h *CartHandler) AddItem(ctx context.Context, session ksid.ID, req *dto.AddItemRequest) (*dto.CartResponse, error) {
	cs := h.carts.Get(ctx, session)
	defer cs.Release()
	change, err := cs.Store.Add(ctx, req.ID, req.Name, req.PriceValue())
	if err != nil {
		return nil, cartError(err)
	}
	return h.respond(cs, &change), nil
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (h *CartHandler) UpdateItem(ctx context.Context, session ksid.ID, req *dto.UpdateItemRequest) (*dto.CartResponse, error) {
	cs := h.carts.Get(ctx, session)
	defer cs.Release()
	change, err := cs.Store.SetQuantity(ctx, req.ID, req.QuantityValue())
	if err != nil {
		return nil, cartError(err)
	}
	return h.respond(cs, &change), nil
}

// RemoveItem removes a line. Removing an absent line succeeds.
func (h *CartHandler) RemoveItem(ctx context.Context, session ksid.ID, req *dto.RemoveItemRequest) (*dto.CartResponse, error) {
	cs := h.carts.Get(ctx, session)
	defer cs.Release()
	change, err := cs.Store.Remove(ctx, req.ID)
	if err != nil {
		return nil, cartError(err)
	}
	return h.respond(cs, &change), nil
}

// Clear empties the cart.
func (h *CartHandler) Clear(ctx context.Context, session ksid.ID, _ *dto.ClearCartRequest) (*dto.CartResponse, error) {
	cs := h.carts.Get(ctx, session)
	defer cs.Release()
	change, err := cs.Store.Clear(ctx)
	if err != nil {
		return nil, cartError(err)
	}
	return h.respond(cs, &change), nil
}

func (h *CartHandler) respond(cs *CartSession, change *cart.Change) *dto.CartResponse {
	snap, regions, version := cs.View()
	resp := &dto.CartResponse{
		Items:         lineItemsToDTO(snap.Items),
		ItemCount:     snap.ItemCount,
		Total:         snap.Total,
		TotalDisplay:  h.carts.Locale().Money(snap.Total),
		Regions:       regionsToDTO(regions, version),
		Change:        changeToDTO(change),
		Notifications: []dto.Notification{},
	}
	if h.center != nil {
		resp.Notifications = notificationsToDTO(h.center.Active(cs.ID.String()))
	}
	return resp
}
