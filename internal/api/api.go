// Package api exposes the raffle over HTTP: operator operations behind a
// bearer token, participant entry, status queries and the randomness
// coordinator's callback.
package api

import (
	"context"
	"crypto/subtle"
	"math/big"
	"net/http"
	"time"

	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Raffle interface {
	StartRaffle(ctx context.Context) error
	Enter(ctx context.Context, participant common.Address, payment *big.Int) error
	EndRaffle(ctx context.Context) (common.Hash, error)
	RetryPayout(ctx context.Context) error
	Status() raffle.Snapshot
	EntryFee(ctx context.Context) (*big.Int, error)
}

type RoundLister interface {
	ListRounds(ctx context.Context, limit int) ([]*storage.Round, error)
}

// Fulfiller accepts randomness delivered by the coordinator.
type Fulfiller interface {
	Fulfill(ctx context.Context, requestID common.Hash, randomness *big.Int) error
}

// Wallet moves entry payments into custody and refunds rejected entries.
type Wallet interface {
	Deposit(ctx context.Context, from common.Address, amount *big.Int) error
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

type Options struct {
	Raffle    Raffle
	Rounds    RoundLister
	Fulfiller Fulfiller

	// Wallet is optional. Without it payments are taken as already settled
	// by the caller.
	Wallet Wallet

	OperatorToken string
	CallbackToken string
	Gatherer      prometheus.Gatherer
}

type Handler struct {
	raffle        Raffle
	rounds        RoundLister
	fulfiller     Fulfiller
	wallet        Wallet
	operatorToken string
	callbackToken string
	gatherer      prometheus.Gatherer
}

func New(options Options) *Handler {
	gatherer := options.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Handler{
		raffle:        options.Raffle,
		rounds:        options.Rounds,
		fulfiller:     options.Fulfiller,
		wallet:        options.Wallet,
		operatorToken: options.OperatorToken,
		callbackToken: options.CallbackToken,
		gatherer:      gatherer,
	}
}

func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	router.GET("/raffle", h.Status)
	router.GET("/raffle/fee", h.EntryFee)
	router.GET("/raffle/rounds", h.Rounds)
	router.POST("/raffle/enter", h.Enter)

	operator := router.Group("/raffle", bearer(h.operatorToken))
	operator.POST("/start", h.Start)
	operator.POST("/end", h.End)
	operator.POST("/payout/retry", h.RetryPayout)

	router.POST("/randomness/callback", bearer(h.callbackToken), h.Callback)

	return router
}

// bearer rejects requests without the token. An empty token disables the check.
func bearer(token string) gin.HandlerFunc {
	expected := []byte("Bearer " + token)

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		logger.Debug("api: request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)))
	}
}
