// Package bot turns chat commands into matchmaking calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/score-duel/internal/match"
)

const (
	defaultPrefix       = "!"
	defaultHistoryLimit = 5
)

type matchmaker interface {
	PlayerMatches(ctx context.Context, player string, limit int) ([]*match.Match, error)
	Stats(ctx context.Context) (match.Stats, error)
	CancelMatch(ctx context.Context, matchID uuid.UUID, requestingPlayer string) (*match.Match, error)
}

// Options tunes command parsing.
type Options struct {
	Prefix       string
	HistoryLimit int
}

// Gateway dispatches chat messages to the engine and renders text replies.
type Gateway struct {
	engine       matchmaker
	prefix       string
	historyLimit int
	logger       zerolog.Logger
}

// NewGateway creates a chat command gateway.
func NewGateway(engine matchmaker, opts Options, logger zerolog.Logger) *Gateway {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	return &Gateway{
		engine:       engine,
		prefix:       opts.Prefix,
		historyLimit: opts.HistoryLimit,
		logger:       logger.With().Str("component", "bot_gateway").Logger(),
	}
}

// Handle interprets text sent by sender. Messages without the command prefix
// produce an empty reply. Errors are returned only when the engine could not
// serve the request; rejected requests are explained in the reply.
func (g *Gateway) Handle(ctx context.Context, sender, text string) (string, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, g.prefix) {
		return "", nil
	}

	fields := strings.Fields(strings.TrimPrefix(text, g.prefix))
	if len(fields) == 0 {
		return "", nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	g.logger.Debug().Str("sender", sender).Str("command", command).Msg("command received")

	switch command {
	case "matches":
		return g.matches(ctx, sender, args)
	case "stats":
		return g.stats(ctx)
	case "cancel":
		return g.cancel(ctx, sender, args)
	case "help":
		return g.help(), nil
	default:
		return fmt.Sprintf("Unknown command %s%s. Try %shelp.", g.prefix, command, g.prefix), nil
	}
}

func (g *Gateway) matches(ctx context.Context, sender string, args []string) (string, error) {
	player := sender
	if len(args) > 0 {
		player = strings.Join(args, " ")
	}
	if strings.TrimSpace(player) == "" {
		return fmt.Sprintf("Usage: %smatches <playerName>", g.prefix), nil
	}

	history, err := g.engine.PlayerMatches(ctx, player, g.historyLimit)
	if err != nil {
		return g.reject(err)
	}
	if len(history) == 0 {
		return fmt.Sprintf("No matches found for %s.", player), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d match(es) for %s:", len(history), player)
	for _, m := range history {
		b.WriteString("\n- ")
		b.WriteString(describe(m, player))
	}
	return b.String(), nil
}

func (g *Gateway) stats(ctx context.Context) (string, error) {
	stats, err := g.engine.Stats(ctx)
	if err != nil {
		return g.reject(err)
	}
	return fmt.Sprintf("Open lobbies: %d | Total matches: %d | Active players: %d",
		stats.OpenLobbies, stats.TotalMatches, stats.ActivePlayers), nil
}

func (g *Gateway) cancel(ctx context.Context, sender string, args []string) (string, error) {
	if len(args) != 1 {
		return fmt.Sprintf("Usage: %scancel <matchId>", g.prefix), nil
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Sprintf("%q is not a valid match id.", args[0]), nil
	}

	m, err := g.engine.CancelMatch(ctx, id, sender)
	if err != nil {
		return g.reject(err)
	}
	return fmt.Sprintf("Cancelled lobby %s (score %d).", m.ID, m.Creator.Score), nil
}

func (g *Gateway) help() string {
	p := g.prefix
	return strings.Join([]string{
		"Commands:",
		p + "matches <playerName> - recent matches for a player",
		p + "stats - open lobbies, total matches and active players",
		p + "cancel <matchId> - cancel one of your waiting lobbies",
		p + "help - this message",
	}, "\n")
}

// reject renders domain errors as replies and passes anything else through.
func (g *Gateway) reject(err error) (string, error) {
	var verr *match.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s: %s.", verr.Field, verr.Message), nil
	case errors.Is(err, match.ErrNotFound):
		return "Match not found.", nil
	case errors.Is(err, match.ErrNotAuthorized):
		return "Only the player who opened the lobby can cancel it.", nil
	case errors.Is(err, match.ErrAlreadyResolved):
		return "That match is already resolved.", nil
	case errors.Is(err, match.ErrAlreadyCancelled):
		return "That match is already cancelled.", nil
	default:
		g.logger.Error().Err(err).Msg("command failed")
		return "", err
	}
}

// describe renders one history line from player's point of view.
func describe(m *match.Match, player string) string {
	short := m.ID.String()[:8]
	switch m.State {
	case match.StateWaiting:
		return fmt.Sprintf("%s waiting for an opponent (score %d, level %d)", short, m.Creator.Score, m.Creator.Level)
	case match.StateCancelled:
		return fmt.Sprintf("%s cancelled (%s)", short, m.CancelReason)
	}

	if m.Opponent == nil {
		return fmt.Sprintf("%s %s", short, m.State)
	}
	self, other := m.Creator, *m.Opponent
	if m.Opponent.PlayerName == player && m.Creator.PlayerName != player {
		self, other = other, self
	}
	result := "lost to"
	if m.Winner == player {
		result = "beat"
	}
	if self.Score == other.Score {
		result += " (tie)"
	}
	return fmt.Sprintf("%s %s %s %d-%d", short, result, other.PlayerName, self.Score, other.Score)
}
