package application

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"raffle/domain/events"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/params"
	log "github.com/sirupsen/logrus"
)

const colorSuccess = 0x57F287

// EmbedSender is the part of the Discord session used for announcements
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// WinnerAnnouncer posts every completed draw to a Discord channel
type WinnerAnnouncer struct {
	sender    EmbedSender
	channelID string
}

// NewWinnerAnnouncer creates a new winner announcer
func NewWinnerAnnouncer(sender EmbedSender, channelID string) *WinnerAnnouncer {
	return &WinnerAnnouncer{
		sender:    sender,
		channelID: channelID,
	}
}

// HandleWinnerPicked posts the draw result. Announcement failures are logged, never returned,
// so a Discord outage cannot affect event delivery.
func (a *WinnerAnnouncer) HandleWinnerPicked(ctx context.Context, event events.Event) error {
	picked, ok := event.(events.WinnerPickedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, CreateWinnerEmbed(picked, time.Now())); err != nil {
		log.WithFields(log.Fields{
			"channelId": a.channelID,
			"round":     picked.RoundNumber,
			"error":     err,
		}).Error("Failed to announce raffle winner")
	}
	return nil
}

// CreateWinnerEmbed builds the announcement for a completed draw
func CreateWinnerEmbed(picked events.WinnerPickedEvent, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Raffle round %d winner", picked.RoundNumber),
		Description: fmt.Sprintf("`%s` takes the pool!", picked.Winner.Hex()),
		Color:       colorSuccess,
		Timestamp:   now.Format("2006-01-02T15:04:05Z07:00"),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Prize",
				Value:  fmt.Sprintf("**%s ETH**", FormatEther(picked.Payout)),
				Inline: true,
			},
			{
				Name:   "Players",
				Value:  fmt.Sprintf("%d", picked.NumPlayers),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Request ID: %s", picked.RequestID),
		},
	}
}

// FormatEther renders a wei amount in ether with up to six decimals
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	s := ether.Text('f', 6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
