// Package i18n holds the localized strings and number formatting of the cart UI.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale represents a supported language code.
type Locale string

// Supported locales.
const (
	LocaleES Locale = "es"
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
	LocaleDE Locale = "de"
)

// DefaultLocale is used when no locale is specified or the locale is unsupported.
const DefaultLocale = LocaleES

// ParseLocale converts a string to a Locale, returning DefaultLocale if unsupported.
//
// Region subtags are ignored so "es-CL" and "en-US" are accepted.
func ParseLocale(s string) Locale {
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLocale
	}
	base, _ := tag.Base()
	switch l := Locale(base.String()); l {
	case LocaleES, LocaleEN, LocaleFR, LocaleDE:
		return l
	default:
		return DefaultLocale
	}
}

// Tag returns the language tag used for number formatting.
func (l Locale) Tag() language.Tag {
	if t, ok := tags[l]; ok {
		return t
	}
	return tags[DefaultLocale]
}

// Texts returns the strings for the locale.
func (l Locale) Texts() *Texts {
	if t, ok := texts[l]; ok {
		return t
	}
	return texts[DefaultLocale]
}

// Money formats a whole-unit amount with thousands separators and the
// currency symbol, e.g. "$20.000" in Spanish.
func (l Locale) Money(v int64) string {
	return CurrencySymbol + message.NewPrinter(l.Tag()).Sprintf("%d", v)
}

// Number formats an integer with the locale's thousands separators.
func (l Locale) Number(v int64) string {
	return message.NewPrinter(l.Tag()).Sprintf("%d", v)
}

// Added returns the confirmation shown after adding name to the cart.
func (l Locale) Added(name string) string {
	return fmt.Sprintf(l.Texts().AddedFormat, name)
}

// CurrencySymbol prefixes every amount. Prices are whole currency units of a
// single currency, so it does not vary with the locale.
const CurrencySymbol = "$"

// Texts holds the localized UI strings.
type Texts struct {
	// AddedFormat takes the item name.
	AddedFormat string
	EmptyCart   string
	Decrease    string
	Increase    string
	Remove      string
	Total       string
	CartTitle   string
	AddToCart   string
	ClearCart   string
	PlansTitle  string
}

var tags = map[Locale]language.Tag{
	LocaleES: language.MustParse("es-CL"),
	LocaleEN: language.AmericanEnglish,
	LocaleFR: language.French,
	LocaleDE: language.German,
}

var texts = map[Locale]*Texts{
	LocaleES: {
		AddedFormat: "%s agregado al carrito",
		EmptyCart:   "Tu carrito está vacío",
		Decrease:    "Disminuir cantidad",
		Increase:    "Aumentar cantidad",
		Remove:      "Eliminar",
		Total:       "Total",
		CartTitle:   "Carrito",
		AddToCart:   "Agregar al carrito",
		ClearCart:   "Vaciar carrito",
		PlansTitle:  "Planes",
	},
	LocaleEN: {
		AddedFormat: "%s added to cart",
		EmptyCart:   "Your cart is empty",
		Decrease:    "Decrease quantity",
		Increase:    "Increase quantity",
		Remove:      "Remove",
		Total:       "Total",
		CartTitle:   "Cart",
		AddToCart:   "Add to cart",
		ClearCart:   "Empty cart",
		PlansTitle:  "Plans",
	},
	LocaleFR: {
		AddedFormat: "%s ajouté au panier",
		EmptyCart:   "Votre panier est vide",
		Decrease:    "Diminuer la quantité",
		Increase:    "Augmenter la quantité",
		Remove:      "Retirer",
		Total:       "Total",
		CartTitle:   "Panier",
		AddToCart:   "Ajouter au panier",
		ClearCart:   "Vider le panier",
		PlansTitle:  "Forfaits",
	},
	LocaleDE: {
		AddedFormat: "%s zum Warenkorb hinzugefügt",
		EmptyCart:   "Ihr Warenkorb ist leer",
		Decrease:    "Menge verringern",
		Increase:    "Menge erhöhen",
		Remove:      "Entfernen",
		Total:       "Summe",
		CartTitle:   "Warenkorb",
		AddToCart:   "In den Warenkorb",
		ClearCart:   "Warenkorb leeren",
		PlansTitle:  "Tarife",
	},
}
