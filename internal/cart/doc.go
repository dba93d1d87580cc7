// Package cart implements the shopping cart store behind the plans page.
//
// A [Store] owns an ordered list of [LineItem] values, unique by ID, each with
// a quantity of at least one. Every mutation serializes the whole cart to a
// key/value blob store before publishing a [Snapshot] to the configured
// [Renderer]. Adding an item also emits a [Notification].
//
// The persisted layout is a JSON array of {"id","name","price","quantity"}
// objects with no version field. Unreadable or inconsistent data loads as an
// empty cart.
package cart
