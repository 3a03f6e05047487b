package contribution_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/contribute/contribution"
)

func TestHooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []string
	f.hooks.Register(func(ctx context.Context, ev contribution.Event) {
		events = append(events, string(ev.Phase)+" "+string(ev.Action))
	})
	f.hooks.Register(func(ctx context.Context, ev contribution.Event) {
		panic("broken hook")
	})

	c := f.create(t, &contribution.Request{TotalAmount: amount("10")})
	_, err := f.engine.Save(ctx, &contribution.Request{ID: c.ID, Source: "phone"})
	assert.NoError(t, err)
	assert.NoError(t, f.engine.Delete(ctx, c.ID))

	assert.Equal(t, []string{
		"pre create",
		"post create",
		"pre edit",
		"post edit",
		"pre delete",
		"post delete",
	}, events)
}

func TestHooksSeeSavedContribution(t *testing.T) {
	f := newFixture(t)

	var source string
	f.hooks.Register(func(ctx context.Context, ev contribution.Event) {
		if ev.Phase == contribution.PhasePost {
			source = ev.Contribution.Source
		}
	})
	f.create(t, &contribution.Request{TotalAmount: amount("10"), Source: "Online"})
	assert.Equal(t, "Online", source)
}
