package handlers

import (
	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/catalog"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/notify"
	"github.com/maruel/plancart/internal/server/dto"
	"github.com/maruel/plancart/internal/view"
)

func lineItemToDTO(l *cart.LineItem) dto.LineItem {
	return dto.LineItem{
		ID:       l.ID,
		Name:     l.Name,
		Price:    l.Price,
		Quantity: l.Quantity,
		Subtotal: l.Subtotal(),
	}
}

func lineItemsToDTO(items []cart.LineItem) []dto.LineItem {
	out := make([]dto.LineItem, len(items))
	for i := range items {
		out[i] = lineItemToDTO(&items[i])
	}
	return out
}

func regionsToDTO(r view.Regions, version uint64) dto.Regions {
	return dto.Regions{
		Badge:        r.Badge,
		BadgeVisible: r.BadgeVisible,
		ItemsHTML:    string(r.Items),
		Total:        r.Total,
		Version:      version,
	}
}

func changeToDTO(c *cart.Change) *dto.Change {
	if c == nil {
		return nil
	}
	out := &dto.Change{Kind: string(c.Kind)}
	if c.Item.ID != "" {
		item := lineItemToDTO(&c.Item)
		out.Item = &item
	}
	return out
}

func notificationsToDTO(list []notify.Notification) []dto.Notification {
	out := make([]dto.Notification, len(list))
	for i, n := range list {
		out[i] = dto.Notification{
			ID:      n.ID.String(),
			ItemID:  n.ItemID,
			Message: n.Message,
			Expires: n.Expires,
		}
	}
	return out
}

func planToDTO(p *catalog.Plan, locale i18n.Locale) dto.Plan {
	return dto.Plan{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		PriceDisplay: locale.Money(p.Price),
		Description:  p.Description,
		Features:     p.Features,
		Highlight:    p.Highlight,
	}
}
