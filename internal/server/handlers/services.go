package handlers

import (
	"github.com/maruel/plancart/internal/catalog"
	"github.com/maruel/plancart/internal/config"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/notify"
)

// Services holds the dependencies shared by handlers.
type Services struct {
	Carts   *Carts
	Notify  *notify.Center
	Pusher  *notify.Pusher // may be nil
	Catalog *catalog.Source
}

// Config holds configuration values needed by handlers.
type Config struct {
	Version string
	Locale  i18n.Locale
	Quotas  config.Quotas
}
