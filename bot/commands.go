package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const raffleCommandName = "raffle"

// commandDefinitions returns every slash command the bot owns
func commandDefinitions() []*discordgo.ApplicationCommand {
	minIndex := float64(0)
	return []*discordgo.ApplicationCommand{
		{
			Name:        raffleCommandName,
			Description: "Take part in the raffle",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the current round",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "enter",
					Description: "Enter the current round",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "address",
							Description: "Address that receives the prize if you win",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "value",
							Description: "Amount paid in wei (defaults to the entrance fee)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "winner",
					Description: "Show the most recent winner",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "player",
					Description: "Look up an entrant of the current round",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "index",
							Description: "0-based entry position",
							Required:    true,
							MinValue:    &minIndex,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "draws",
					Description: "List recent draws",
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	for _, cmd := range commandDefinitions() {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	return nil
}
