package service

import "context"

// BotReplyProvider produces a reply for a chat message addressed to the bot.
// An empty reply means the bot has nothing to say.
type BotReplyProvider interface {
	Reply(ctx context.Context, content string) (string, error)
}
