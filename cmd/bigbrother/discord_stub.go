package main

import (
	"context"
	"errors"

	"github.com/Milkshiift/BigBrother-bot/internal/discord"
)

// unimplementedClient satisfies discord.Gateway and discord.REST so this
// binary links and runs its startup sequence end to end. The gateway/REST
// client that actually speaks to the platform is a component boundary
// this repository specifies only by interface (internal/discord); wiring
// a concrete client here is the integration point a deployment supplies.
type unimplementedClient struct {
	events chan discord.Event
}

func newUnimplementedClient() *unimplementedClient {
	c := &unimplementedClient{events: make(chan discord.Event)}
	return c
}

func (c *unimplementedClient) SetMode(discord.Mode) {}

func (c *unimplementedClient) Events() <-chan discord.Event { return c.events }

func (c *unimplementedClient) Close(context.Context) error {
	close(c.events)
	return nil
}

var errNoDiscordClient = errors.New("no discord.Gateway/discord.REST implementation is wired into this build")

func (c *unimplementedClient) ChannelMessages(context.Context, uint64, uint64, int) ([]discord.Message, error) {
	return nil, errNoDiscordClient
}

func (c *unimplementedClient) GuildMembers(context.Context, uint64, uint64, int) ([]discord.Member, error) {
	return nil, errNoDiscordClient
}

func (c *unimplementedClient) Guild(context.Context, uint64) (*discord.Guild, error) {
	return nil, errNoDiscordClient
}

func (c *unimplementedClient) GuildRoles(context.Context, uint64) ([]discord.Role, error) {
	return nil, errNoDiscordClient
}

func (c *unimplementedClient) GuildChannels(context.Context, uint64) ([]discord.Channel, error) {
	return nil, errNoDiscordClient
}
