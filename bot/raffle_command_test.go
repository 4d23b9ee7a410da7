package bot

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	botcommon "raffle/bot/common"
	"raffle/domain/entities"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error) {
	args := m.Called(ctx, player, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Entrant), args.Error(1)
}

func (m *mockEngine) GetRaffle(ctx context.Context) (*entities.Raffle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Raffle), args.Error(1)
}

func (m *mockEngine) GetPlayer(ctx context.Context, index int64) (common.Address, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *mockEngine) GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DrawResult), args.Error(1)
}

var (
	testNow    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testPlayer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func openRaffle() *entities.Raffle {
	return entities.NewRaffle(1, entities.RaffleConfig{
		EntranceFee: entities.DefaultEntranceFee,
		Interval:    entities.DefaultInterval,
	}, testNow)
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func options(opts ...*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func TestExecuteRaffleCommand_Enter(t *testing.T) {
	t.Parallel()

	fee := entities.DefaultEntranceFee

	tests := []struct {
		name        string
		args        map[string]*discordgo.ApplicationCommandInteractionDataOption
		setup       func(m *mockEngine)
		wantContent string
		wantUserErr string
		wantSysErr  bool
	}{
		{
			name: "defaults to entrance fee",
			args: options(stringOption("address", testPlayer.Hex())),
			setup: func(m *mockEngine) {
				m.On("GetRaffle", mock.Anything).Return(openRaffle(), nil)
				m.On("Enter", mock.Anything, testPlayer, fee).Return(&entities.Entrant{
					RoundNumber: 1, Position: 0, Player: testPlayer, Value: fee,
				}, nil)
			},
			wantContent: "entered round 1 as entry #0 with 0.01 ETH",
		},
		{
			name: "explicit value",
			args: options(stringOption("address", testPlayer.Hex()), stringOption("value", "20000000000000000")),
			setup: func(m *mockEngine) {
				m.On("Enter", mock.Anything, testPlayer, big.NewInt(20_000_000_000_000_000)).Return(&entities.Entrant{
					RoundNumber: 2, Position: 3, Player: testPlayer, Value: big.NewInt(20_000_000_000_000_000),
				}, nil)
			},
			wantContent: "entered round 2 as entry #3 with 0.02 ETH",
		},
		{
			name:        "invalid address",
			args:        options(stringOption("address", "alice")),
			wantUserErr: "Please provide a valid 0x address",
		},
		{
			name:        "invalid value",
			args:        options(stringOption("address", testPlayer.Hex()), stringOption("value", "lots")),
			wantUserErr: "Value must be an amount in wei",
		},
		{
			name: "below fee",
			args: options(stringOption("address", testPlayer.Hex()), stringOption("value", "1")),
			setup: func(m *mockEngine) {
				m.On("Enter", mock.Anything, testPlayer, big.NewInt(1)).Return(nil, &entities.InsufficientValueError{
					Sent: big.NewInt(1), Required: fee,
				})
			},
			wantUserErr: "The entrance fee is 0.01 ETH",
		},
		{
			name: "drawing",
			args: options(stringOption("address", testPlayer.Hex()), stringOption("value", "10000000000000000")),
			setup: func(m *mockEngine) {
				m.On("Enter", mock.Anything, testPlayer, fee).Return(nil, &entities.RoundNotOpenError{
					State: entities.RaffleStateCalculating,
				})
			},
			wantUserErr: "A draw is in progress, try again once the winner is picked",
		},
		{
			name: "infrastructure failure",
			args: options(stringOption("address", testPlayer.Hex()), stringOption("value", "10000000000000000")),
			setup: func(m *mockEngine) {
				m.On("Enter", mock.Anything, testPlayer, fee).Return(nil, errors.New("connection refused"))
			},
			wantSysErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &mockEngine{}
			if tt.setup != nil {
				tt.setup(engine)
			}
			b := &Bot{engine: engine}

			data, err := b.executeRaffleCommand(context.Background(), "enter", tt.args, testNow)

			switch {
			case tt.wantUserErr != "":
				var botErr *botcommon.BotError
				require.ErrorAs(t, err, &botErr)
				assert.Equal(t, tt.wantUserErr, botErr.UserMessage)
				assert.Nil(t, botErr.Err)
			case tt.wantSysErr:
				var botErr *botcommon.BotError
				require.ErrorAs(t, err, &botErr)
				assert.Error(t, botErr.Err)
			default:
				require.NoError(t, err)
				assert.Contains(t, data.Content, tt.wantContent)
			}
			engine.AssertExpectations(t)
		})
	}
}

func TestExecuteRaffleCommand_Status(t *testing.T) {
	t.Parallel()

	t.Run("open", func(t *testing.T) {
		t.Parallel()

		raffle := openRaffle()
		raffle.RecordEntry(entities.DefaultEntranceFee)

		engine := &mockEngine{}
		engine.On("GetRaffle", mock.Anything).Return(raffle, nil)
		b := &Bot{engine: engine}

		data, err := b.executeRaffleCommand(context.Background(), "status", nil, testNow.Add(10*time.Second))
		require.NoError(t, err)
		require.Len(t, data.Embeds, 1)

		embed := data.Embeds[0]
		assert.Equal(t, "Raffle round 1", embed.Title)
		assert.Equal(t, botcommon.ColorSuccess, embed.Color)
		require.Len(t, embed.Fields, 6)
		assert.Equal(t, "**0.01 ETH**", embed.Fields[1].Value)
		assert.Equal(t, "1", embed.Fields[2].Value)
		assert.Equal(t, "30s", embed.Fields[4].Value)
		assert.Equal(t, botcommon.FormatDiscordTimestamp(testNow.Add(30*time.Second), "R"), embed.Fields[5].Value)
	})

	t.Run("calculating", func(t *testing.T) {
		t.Parallel()

		raffle := openRaffle()
		raffle.RecordEntry(entities.DefaultEntranceFee)
		require.NoError(t, raffle.BeginDraw(big.NewInt(1), testNow))

		engine := &mockEngine{}
		engine.On("GetRaffle", mock.Anything).Return(raffle, nil)
		b := &Bot{engine: engine}

		data, err := b.executeRaffleCommand(context.Background(), "status", nil, testNow)
		require.NoError(t, err)

		embed := data.Embeds[0]
		assert.Equal(t, botcommon.ColorWarning, embed.Color)
		assert.Len(t, embed.Fields, 5)
	})
}

func TestExecuteRaffleCommand_Lookups(t *testing.T) {
	t.Parallel()

	winner := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	decided := openRaffle()
	decided.CompleteDraw(winner, testNow)

	engine := &mockEngine{}
	engine.On("GetPlayer", mock.Anything, int64(0)).Return(testPlayer, nil)
	engine.On("GetPlayer", mock.Anything, int64(4)).Return(common.Address{}, &entities.PlayerIndexOutOfRangeError{Index: 4, NumPlayers: 1})
	engine.On("GetRecentDraws", mock.Anything, recentDrawsShown).Return([]*entities.DrawResult{{
		RoundNumber:  1,
		Winner:       winner,
		Payout:       big.NewInt(40_000_000_000_000_000),
		EntrantCount: 4,
		CompletedAt:  testNow,
	}}, nil)
	engine.On("GetRaffle", mock.Anything).Return(decided, nil)
	b := &Bot{engine: engine}
	ctx := context.Background()

	data, err := b.executeRaffleCommand(ctx, "player", options(intOption("index", 0)), testNow)
	require.NoError(t, err)
	assert.Contains(t, data.Content, testPlayer.Hex())

	_, err = b.executeRaffleCommand(ctx, "player", options(intOption("index", 4)), testNow)
	var botErr *botcommon.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "There are only 1 entries this round", botErr.UserMessage)

	data, err = b.executeRaffleCommand(ctx, "draws", nil, testNow)
	require.NoError(t, err)
	assert.Contains(t, data.Embeds[0].Description, "**Round 1**")
	assert.Contains(t, data.Embeds[0].Description, "0.04 ETH")

	data, err = b.executeRaffleCommand(ctx, "winner", nil, testNow)
	require.NoError(t, err)
	assert.Contains(t, data.Content, winner.Hex())

	_, err = b.executeRaffleCommand(ctx, "bogus", nil, testNow)
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, "Unknown subcommand", botErr.UserMessage)
}

func TestExecuteRaffleCommand_NoWinnerYet(t *testing.T) {
	t.Parallel()

	engine := &mockEngine{}
	engine.On("GetRaffle", mock.Anything).Return(openRaffle(), nil)
	engine.On("GetRecentDraws", mock.Anything, recentDrawsShown).Return([]*entities.DrawResult{}, nil)
	b := &Bot{engine: engine}

	data, err := b.executeRaffleCommand(context.Background(), "winner", nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "No draw has completed yet.", data.Content)

	data, err = b.executeRaffleCommand(context.Background(), "draws", nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "No draws yet.", data.Embeds[0].Description)
}

func TestCommandDefinitions(t *testing.T) {
	t.Parallel()

	commands := commandDefinitions()
	require.Len(t, commands, 1)
	assert.Equal(t, raffleCommandName, commands[0].Name)

	var names []string
	for _, opt := range commands[0].Options {
		names = append(names, opt.Name)
	}
	assert.Equal(t, []string{"status", "enter", "winner", "player", "draws"}, names)
}
