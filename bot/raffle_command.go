package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"raffle/application"
	botcommon "raffle/bot/common"
	"raffle/domain/entities"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const recentDrawsShown = 5

// handleRaffleCommand handles /raffle and its subcommands
func (b *Bot) handleRaffleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		botcommon.RespondWithError(s, i, "Missing subcommand")
		return
	}

	sub := options[0]
	args := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		args[opt.Name] = opt
	}

	data, err := b.executeRaffleCommand(context.Background(), sub.Name, args, time.Now())
	if err != nil {
		botcommon.HandleError(s, i, err)
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		botcommon.HandleError(s, i, botcommon.NewSystemError(err, "Failed to respond to raffle command"))
	}
}

// executeRaffleCommand runs a /raffle subcommand and builds its response
func (b *Bot) executeRaffleCommand(
	ctx context.Context,
	sub string,
	args map[string]*discordgo.ApplicationCommandInteractionDataOption,
	now time.Time,
) (*discordgo.InteractionResponseData, error) {
	switch sub {
	case "status":
		raffle, err := b.engine.GetRaffle(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{createStatusEmbed(raffle, now)},
		}, nil

	case "enter":
		return b.enter(ctx, args)

	case "winner":
		raffle, err := b.engine.GetRaffle(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		if raffle.RecentWinner == nil {
			return &discordgo.InteractionResponseData{Content: "No draw has completed yet."}, nil
		}
		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("🏆 The most recent winner is `%s`", raffle.RecentWinner.Hex()),
		}, nil

	case "player":
		opt, ok := args["index"]
		if !ok {
			return nil, botcommon.NewUserError("An index is required", "player lookup without index")
		}
		index := opt.IntValue()
		player, err := b.engine.GetPlayer(ctx, index)
		if err != nil {
			return nil, translateError(err)
		}
		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Entry #%d belongs to `%s`", index, player.Hex()),
			Flags:   discordgo.MessageFlagsEphemeral,
		}, nil

	case "draws":
		draws, err := b.engine.GetRecentDraws(ctx, recentDrawsShown)
		if err != nil {
			return nil, translateError(err)
		}
		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{createDrawsEmbed(draws)},
		}, nil
	}

	return nil, botcommon.NewUserError("Unknown subcommand", "unknown raffle subcommand "+sub)
}

func (b *Bot) enter(ctx context.Context, args map[string]*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.InteractionResponseData, error) {
	addressOpt, ok := args["address"]
	if !ok || !common.IsHexAddress(addressOpt.StringValue()) {
		return nil, botcommon.NewUserError("Please provide a valid 0x address", "enter with invalid address")
	}
	player := common.HexToAddress(addressOpt.StringValue())

	var value *big.Int
	if valueOpt, ok := args["value"]; ok {
		parsed, ok := math.ParseBig256(strings.TrimSpace(valueOpt.StringValue()))
		if !ok || parsed.Sign() < 0 {
			return nil, botcommon.NewUserError("Value must be an amount in wei", "enter with invalid value")
		}
		value = parsed
	} else {
		raffle, err := b.engine.GetRaffle(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		value = raffle.EntranceFee
	}

	entrant, err := b.engine.Enter(ctx, player, value)
	if err != nil {
		return nil, translateError(err)
	}

	return &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("🎟️ `%s` entered round %d as entry #%d with %s ETH",
			botcommon.ShortAddress(entrant.Player.Hex()), entrant.RoundNumber, entrant.Position, application.FormatEther(entrant.Value)),
	}, nil
}

// translateError turns engine rejections into user errors
func translateError(err error) error {
	var (
		insufficient *entities.InsufficientValueError
		notOpen      *entities.RoundNotOpenError
		outOfRange   *entities.PlayerIndexOutOfRangeError
	)
	switch {
	case errors.As(err, &insufficient):
		return botcommon.NewUserError(
			fmt.Sprintf("The entrance fee is %s ETH", application.FormatEther(insufficient.Required)),
			err.Error(),
		)
	case errors.As(err, &notOpen):
		return botcommon.NewUserError("A draw is in progress, try again once the winner is picked", err.Error())
	case errors.As(err, &outOfRange):
		return botcommon.NewUserError(
			fmt.Sprintf("There are only %d entries this round", outOfRange.NumPlayers),
			err.Error(),
		)
	case errors.Is(err, entities.ErrRaffleNotFound):
		return botcommon.NewSystemError(err, "Raffle is not initialized")
	}
	return botcommon.NewSystemError(err, "Raffle command failed")
}

// createStatusEmbed renders the current round
func createStatusEmbed(raffle *entities.Raffle, now time.Time) *discordgo.MessageEmbed {
	color := botcommon.ColorSuccess
	stateText := "🟢 Open"
	if raffle.IsCalculating() {
		color = botcommon.ColorWarning
		stateText = "🟠 Drawing winner"
	}

	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Raffle round %d", raffle.RoundNumber),
		Color:     color,
		Timestamp: now.Format("2006-01-02T15:04:05Z07:00"),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "State", Value: stateText, Inline: true},
			{Name: "Pool", Value: fmt.Sprintf("**%s ETH**", application.FormatEther(raffle.PoolBalance)), Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d", raffle.PlayerCount), Inline: true},
			{Name: "Entrance Fee", Value: fmt.Sprintf("%s ETH", application.FormatEther(raffle.EntranceFee)), Inline: true},
			{Name: "Interval", Value: botcommon.FormatDuration(raffle.Interval), Inline: true},
		},
	}

	if raffle.IsOpen() {
		drawAt := raffle.LastTimestamp.Add(raffle.Interval)
		value := "Eligible now"
		if drawAt.After(now) {
			value = botcommon.FormatDiscordTimestamp(drawAt, "R")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Earliest Draw",
			Value:  value,
			Inline: true,
		})
	}

	return embed
}

// createDrawsEmbed lists completed draws, newest first
func createDrawsEmbed(draws []*entities.DrawResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Recent draws",
		Color: botcommon.ColorPrimary,
	}
	if len(draws) == 0 {
		embed.Description = "No draws yet."
		return embed
	}

	var sb strings.Builder
	for _, draw := range draws {
		fmt.Fprintf(&sb, "**Round %d** `%s` won %s ETH (%d players) %s\n",
			draw.RoundNumber,
			botcommon.ShortAddress(draw.Winner.Hex()),
			application.FormatEther(draw.Payout),
			draw.EntrantCount,
			botcommon.FormatDiscordTimestamp(draw.CompletedAt, "R"),
		)
	}
	embed.Description = sb.String()
	return embed
}
