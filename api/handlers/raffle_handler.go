package handlers

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"
)

// RaffleEngine is the engine surface exposed over HTTP
type RaffleEngine interface {
	Enter(ctx context.Context, player common.Address, value *big.Int) (*entities.Entrant, error)
	CheckUpkeep(ctx context.Context, checkData []byte) (*interfaces.UpkeepCheck, error)
	PerformUpkeep(ctx context.Context, performData []byte) (*big.Int, error)
	GetRaffle(ctx context.Context) (*entities.Raffle, error)
	GetPlayer(ctx context.Context, index int64) (common.Address, error)
	GetRecentDraws(ctx context.Context, limit int) ([]*entities.DrawResult, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetRequestConfirmations() uint16
	GetNumWords() uint32
}

// RaffleHandler handles raffle HTTP requests
type RaffleHandler struct {
	engine RaffleEngine
}

// NewRaffleHandler creates a new RaffleHandler
func NewRaffleHandler(engine RaffleEngine) *RaffleHandler {
	return &RaffleHandler{
		engine: engine,
	}
}

// EnterRequest is the body of POST /raffle/enter.
// Value is in wei, decimal or 0x-prefixed hex.
type EnterRequest struct {
	Player string `json:"player" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

// Enter handles POST /raffle/enter
func (h *RaffleHandler) Enter(c *gin.Context) {
	var request EnterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": err.Error()})
		return
	}
	if !common.IsHexAddress(request.Player) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "player must be a hex address"})
		return
	}
	value, ok := math.ParseBig256(request.Value)
	if !ok || value.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "value must be a 256-bit unsigned integer"})
		return
	}

	entrant, err := h.engine.Enter(c.Request.Context(), common.HexToAddress(request.Player), value)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"player":   entrant.Player.Hex(),
		"value":    entrant.Value.String(),
		"round":    entrant.RoundNumber,
		"position": entrant.Position,
	})
}

// CheckUpkeep handles GET /raffle/upkeep
func (h *RaffleHandler) CheckUpkeep(c *gin.Context) {
	var checkData []byte
	if raw := c.Query("checkData"); raw != "" && raw != "0x" {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "checkData must be 0x-prefixed hex"})
			return
		}
		checkData = decoded
	}

	check, err := h.engine.CheckUpkeep(c.Request.Context(), checkData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upkeepNeeded": check.UpkeepNeeded,
		"performData":  hexutil.Encode(check.PerformData),
		"isOpen":       check.Status.IsOpen,
		"timePassed":   check.Status.TimePassed,
		"hasPlayers":   check.Status.HasPlayers,
		"hasBalance":   check.Status.HasBalance,
	})
}

// PerformUpkeep handles POST /raffle/upkeep
func (h *RaffleHandler) PerformUpkeep(c *gin.Context) {
	requestID, err := h.engine.PerformUpkeep(c.Request.Context(), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID.String()})
}

// GetState handles GET /raffle/state
func (h *RaffleHandler) GetState(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"raffleState":          raffle.State.String(),
		"round":                raffle.RoundNumber,
		"numberOfPlayers":      raffle.PlayerCount,
		"poolBalance":          raffle.PoolBalance.String(),
		"entranceFee":          raffle.EntranceFee.String(),
		"interval":             int64(raffle.Interval / time.Second),
		"lastTimestamp":        raffle.LastTimestamp.Unix(),
		"requestConfirmations": h.engine.GetRequestConfirmations(),
		"numWords":             h.engine.GetNumWords(),
	}
	if raffle.ActiveRequestID != nil {
		response["activeRequestId"] = raffle.ActiveRequestID.String()
	}
	c.JSON(http.StatusOK, response)
}

// GetRecentWinner handles GET /raffle/recent-winner
func (h *RaffleHandler) GetRecentWinner(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	winner := common.Address{}
	if raffle.RecentWinner != nil {
		winner = *raffle.RecentWinner
	}
	c.JSON(http.StatusOK, gin.H{"recentWinner": winner.Hex()})
}

// GetPlayer handles GET /raffle/players/:index
func (h *RaffleHandler) GetPlayer(c *gin.Context) {
	index, err := strconv.ParseInt(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "index must be an integer"})
		return
	}

	player, err := h.engine.GetPlayer(c.Request.Context(), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "player": player.Hex()})
}

// GetNumberOfPlayers handles GET /raffle/players/count
func (h *RaffleHandler) GetNumberOfPlayers(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numberOfPlayers": raffle.PlayerCount})
}

// GetEntranceFee handles GET /raffle/entrance-fee
func (h *RaffleHandler) GetEntranceFee(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entranceFee": raffle.EntranceFee.String()})
}

// GetInterval handles GET /raffle/interval
func (h *RaffleHandler) GetInterval(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval": int64(raffle.Interval / time.Second)})
}

// GetLastTimestamp handles GET /raffle/timestamp
func (h *RaffleHandler) GetLastTimestamp(c *gin.Context) {
	raffle, err := h.engine.GetRaffle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastTimestamp": raffle.LastTimestamp.Unix()})
}

// DrawResponse is a completed draw as rendered over HTTP
type DrawResponse struct {
	Round        int64  `json:"round"`
	RequestID    string `json:"requestId"`
	RandomWord   string `json:"randomWord"`
	WinnerIndex  int64  `json:"winnerIndex"`
	Winner       string `json:"winner"`
	Payout       string `json:"payout"`
	EntrantCount int64  `json:"entrantCount"`
	CompletedAt  int64  `json:"completedAt"`
}

// GetRecentDraws handles GET /raffle/draws?limit=N
func (h *RaffleHandler) GetRecentDraws(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	draws, err := h.engine.GetRecentDraws(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DrawResponse, 0, len(draws))
	for _, draw := range draws {
		response = append(response, DrawResponse{
			Round:        draw.RoundNumber,
			RequestID:    draw.RequestID.String(),
			RandomWord:   draw.RandomWord.String(),
			WinnerIndex:  draw.WinnerIndex,
			Winner:       draw.Winner.Hex(),
			Payout:       draw.Payout.String(),
			EntrantCount: draw.EntrantCount,
			CompletedAt:  draw.CompletedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"draws": response})
}

// GetBalance handles GET /accounts/:address/balance
func (h *RaffleHandler) GetBalance(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest", "message": "address must be a hex address"})
		return
	}

	balance, err := h.engine.GetBalance(c.Request.Context(), common.HexToAddress(address))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": common.HexToAddress(address).Hex(), "balance": balance.String()})
}
