package cart_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/storage"
)

type cartTestContext struct {
	blobs *storage.Memory
	store *cart.Store
	err   error
}

func (c *cartTestContext) reset(ctx context.Context) {
	c.blobs = storage.NewMemory()
	c.store = cart.Open(ctx, c.blobs, cart.Options{})
	c.err = nil
}

func (c *cartTestContext) anEmptyCart(ctx context.Context) error {
	c.reset(ctx)
	return nil
}

func (c *cartTestContext) iAdd(ctx context.Context, id, name, price string) error {
	p, err := cart.ParsePrice(price)
	if err != nil {
		c.err = err
		return nil
	}
	_, c.err = c.store.Add(ctx, id, name, p)
	return nil
}

func (c *cartTestContext) iSetQuantity(ctx context.Context, id, qty string) error {
	q, err := cart.ParseQuantity(qty)
	if err != nil {
		c.err = err
		return nil
	}
	_, c.err = c.store.SetQuantity(ctx, id, q)
	return nil
}

func (c *cartTestContext) iRemove(ctx context.Context, id string) error {
	_, c.err = c.store.Remove(ctx, id)
	return nil
}

func (c *cartTestContext) iClear(ctx context.Context) error {
	_, c.err = c.store.Clear(ctx)
	return nil
}

func (c *cartTestContext) iReload(ctx context.Context) error {
	c.store = cart.Open(ctx, c.blobs, cart.Options{})
	return nil
}

func (c *cartTestContext) theItemCountIs(n int) error {
	if got := c.store.ItemCount(); got != int64(n) {
		return fmt.Errorf("expected item count %d, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theTotalIs(n int) error {
	if got := c.store.Total(); got != int64(n) {
		return fmt.Errorf("expected total %d, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theCartHasDistinctLines(n int) error {
	if got := len(c.store.Items()); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theCartIsEmpty() error {
	if items := c.store.Items(); len(items) != 0 {
		return fmt.Errorf("expected empty cart, got %v", items)
	}
	return nil
}

func (c *cartTestContext) thePersistedCartIs(ctx context.Context, want string) error {
	data, err := c.blobs.Load(ctx, cart.StorageKey)
	if err != nil {
		return err
	}
	if string(data) != want {
		return fmt.Errorf("expected persisted %s, got %s", want, data)
	}
	return nil
}

func (c *cartTestContext) theLastOperationSucceeded() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %v", c.err)
	}
	return nil
}

func (c *cartTestContext) theLastOperationFailed() error {
	if c.err == nil {
		return errors.New("expected the operation to fail")
	}
	return nil
}

func (c *cartTestContext) theLinesAre(want string) error {
	var got []string
	for _, l := range c.store.Items() {
		got = append(got, fmt.Sprintf("%sx%d", l.ID, l.Quantity))
	}
	if s := strings.Join(got, ","); s != want {
		return fmt.Errorf("expected lines %s, got %s", want, s)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset(ctx)
		return ctx, nil
	})

	ctx.Step(`^an empty cart$`, tc.anEmptyCart)

	ctx.Step(`^I add "([^"]*)" named "([^"]*)" at "([^"]*)"$`, tc.iAdd)
	ctx.Step(`^I set the quantity of "([^"]*)" to "([^"]*)"$`, tc.iSetQuantity)
	ctx.Step(`^I remove "([^"]*)"$`, tc.iRemove)
	ctx.Step(`^I clear the cart$`, tc.iClear)
	ctx.Step(`^I reload the cart$`, tc.iReload)

	ctx.Step(`^the item count is (\d+)$`, tc.theItemCountIs)
	ctx.Step(`^the total is (\d+)$`, tc.theTotalIs)
	ctx.Step(`^the cart has (\d+) distinct lines?$`, tc.theCartHasDistinctLines)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the persisted cart is "([^"]*)"$`, tc.thePersistedCartIs)
	ctx.Step(`^the last operation succeeded$`, tc.theLastOperationSucceeded)
	ctx.Step(`^the last operation failed$`, tc.theLastOperationFailed)
	ctx.Step(`^the lines are "([^"]*)"$`, tc.theLinesAre)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
