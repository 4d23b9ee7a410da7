package bot

import (
	"context"
	"fmt"
	"math/big"

	"raffle/domain/entities"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token     string
	GuildID   string // empty registers commands globally
	ChannelID string // announcement channel
}

// RaffleEngine is the engine surface the bot exposes to Discord users
type RaffleEngine interface {
	Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error)
	GetRaffle(ctx context.Context) (*entities.Raffle, error)
	GetPlayer(ctx context.Context, index int64) (common.Address, error)
	GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error)
}

// Bot manages the Discord session and the raffle slash command
type Bot struct {
	config  Config
	session *discordgo.Session
	engine  RaffleEngine
}

// New creates a new bot instance, opens the session and registers its commands
func New(config Config, engine RaffleEngine) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		config:  config,
		session: dg,
		engine:  engine,
	}

	dg.AddHandler(bot.handleCommands)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	log.WithField("guildId", config.GuildID).Info("Discord bot connected")
	return bot, nil
}

// Session returns the Discord session
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Close gracefully shuts down the bot
func (b *Bot) Close() error {
	return b.session.Close()
}

// handleCommands routes slash commands to appropriate handlers
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case raffleCommandName:
		b.handleRaffleCommand(s, i)
	}
}
