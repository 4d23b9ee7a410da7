package handlers

import (
	"errors"
	"net/http"

	"raffle/domain/entities"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondError maps engine errors onto status codes, keeping the typed error context in the body
func respondError(c *gin.Context, err error) {
	var (
		insufficient *entities.InsufficientValueError
		notOpen      *entities.RoundNotOpenError
		notMet       *entities.TriggerConditionsNotMetError
		outOfRange   *entities.PlayerIndexOutOfRangeError
	)

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "InsufficientValue",
			"message":  err.Error(),
			"sent":     insufficient.Sent.String(),
			"required": insufficient.Required.String(),
		})
	case errors.As(err, &notOpen):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "RaffleNotOpen",
			"message": err.Error(),
			"state":   notOpen.State.String(),
		})
	case errors.As(err, &notMet):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "UpkeepNotNeeded",
			"message":     err.Error(),
			"balance":     notMet.Balance.String(),
			"numPlayers":  notMet.NumPlayers,
			"raffleState": notMet.State.String(),
		})
	case errors.As(err, &outOfRange):
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "PlayerIndexOutOfRange",
			"message":    err.Error(),
			"index":      outOfRange.Index,
			"numPlayers": outOfRange.NumPlayers,
		})
	case errors.Is(err, entities.ErrRaffleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "RaffleNotFound", "message": err.Error()})
	default:
		log.WithFields(log.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("Raffle request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": "Failed to process request: " + err.Error()})
	}
}
