package routes

import (
	"raffle/api/handlers"
	"raffle/api/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the router
func SetupRouter(engine handlers.RaffleEngine, health handlers.HealthReporter) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	raffleHandler := handlers.NewRaffleHandler(engine)
	healthHandler := handlers.NewHealthHandler(health)

	router.GET("/health", healthHandler.Health)

	raffle := router.Group("/raffle")
	{
		raffle.POST("/enter", raffleHandler.Enter)
		raffle.GET("/upkeep", raffleHandler.CheckUpkeep)
		raffle.POST("/upkeep", raffleHandler.PerformUpkeep)

		raffle.GET("/state", raffleHandler.GetState)
		raffle.GET("/recent-winner", raffleHandler.GetRecentWinner)
		raffle.GET("/entrance-fee", raffleHandler.GetEntranceFee)
		raffle.GET("/interval", raffleHandler.GetInterval)
		raffle.GET("/timestamp", raffleHandler.GetLastTimestamp)
		raffle.GET("/draws", raffleHandler.GetRecentDraws)

		players := raffle.Group("/players")
		{
			players.GET("/count", raffleHandler.GetNumberOfPlayers)
			players.GET("/:index", raffleHandler.GetPlayer)
		}
	}

	router.GET("/accounts/:address/balance", raffleHandler.GetBalance)

	return router
}
