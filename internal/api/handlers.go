package api

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"raffle/internal/fee"
	"raffle/internal/ledger"
	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRoundsLimit = 20
	maxRoundsLimit     = 100
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	State             string     `json:"state"`
	Round             uint64     `json:"round"`
	RoundID           string     `json:"round_id,omitempty"`
	Entrants          []string   `json:"entrants"`
	PoolBalance       string     `json:"pool_balance"`
	PoolBalanceNative string     `json:"pool_balance_native"`
	PendingRequestID  string     `json:"pending_request_id,omitempty"`
	RecentWinner      string     `json:"recent_winner,omitempty"`
	PendingWinner     string     `json:"pending_winner,omitempty"`
	LastRandomness    string     `json:"last_randomness,omitempty"`
	PayoutError       string     `json:"payout_error,omitempty"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type feeResponse struct {
	Fee       string `json:"fee"`
	FeeNative string `json:"fee_native"`
}

type enterRequest struct {
	Participant string `json:"participant" binding:"required"`
	Payment     string `json:"payment" binding:"required"`
}

type endResponse struct {
	RequestID string `json:"request_id"`
}

type callbackRequest struct {
	RequestID  string `json:"request_id" binding:"required"`
	Randomness string `json:"randomness" binding:"required"`
}

type roundResponse struct {
	RoundID    string     `json:"round_id"`
	Round      uint64     `json:"round"`
	Status     string     `json:"status"`
	Winner     string     `json:"winner"`
	Amount     string     `json:"amount"`
	RequestID  string     `json:"request_id"`
	Randomness string     `json:"randomness"`
	Entrants   int        `json:"entrants"`
	Error      string     `json:"error,omitempty"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResponse(h.raffle.Status()))
}

func (h *Handler) EntryFee(c *gin.Context) {
	quote, err := h.raffle.EntryFee(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, feeResponse{
		Fee:       quote.String(),
		FeeNative: fee.ToNative(quote).String(),
	})
}

func (h *Handler) Rounds(c *gin.Context) {
	limit := defaultRoundsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxRoundsLimit)
	}

	rounds, err := h.rounds.ListRounds(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	response := make([]roundResponse, 0, len(rounds))
	for _, round := range rounds {
		response = append(response, toRoundResponse(round))
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) Start(c *gin.Context) {
	if err := h.raffle.StartRaffle(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(h.raffle.Status()))
}

func (h *Handler) Enter(c *gin.Context) {
	var request enterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !common.IsHexAddress(request.Participant) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "participant must be a hex address"})
		return
	}
	participant := common.HexToAddress(request.Participant)

	payment, ok := new(big.Int).SetString(request.Payment, 10)
	if !ok || payment.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "payment must be a positive integer amount in wei"})
		return
	}

	ctx := c.Request.Context()

	if h.wallet != nil {
		if err := h.wallet.Deposit(ctx, participant, payment); err != nil {
			h.fail(c, err)
			return
		}
	}

	if err := h.raffle.Enter(ctx, participant, payment); err != nil {
		if h.wallet != nil {
			if refundErr := h.wallet.Transfer(ctx, participant, payment); refundErr != nil {
				logger.Error("api: refund of rejected entry failed",
					zap.String("participant", participant.Hex()),
					zap.String("payment", payment.String()),
					zap.Error(refundErr))
			}
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(h.raffle.Status()))
}

func (h *Handler) End(c *gin.Context) {
	requestID, err := h.raffle.EndRaffle(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, endResponse{RequestID: requestID.Hex()})
}

func (h *Handler) RetryPayout(c *gin.Context) {
	if err := h.raffle.RetryPayout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(h.raffle.Status()))
}

// Callback receives the coordinator's fulfillment. A payout failure still
// consumed the randomness, so it is acknowledged.
func (h *Handler) Callback(c *gin.Context) {
	var request callbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id, err := hexutil.Decode(request.RequestID)
	if err != nil || len(id) != common.HashLength {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request_id must be a 32-byte hex value"})
		return
	}

	randomness, ok := new(big.Int).SetString(request.Randomness, 10)
	if !ok || randomness.Sign() < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "randomness must be a non-negative integer"})
		return
	}

	err = h.fulfiller.Fulfill(c.Request.Context(), common.BytesToHash(id), randomness)
	if err != nil && !errors.Is(err, raffle.ErrPayoutFailed) {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(h.raffle.Status()))
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Debug("api: request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, raffle.ErrInvalidStateTransition), errors.Is(err, raffle.ErrEmptyPool):
		return http.StatusConflict
	case errors.Is(err, raffle.ErrInsufficientPayment), errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, raffle.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, raffle.ErrMissingRandomness):
		return http.StatusBadRequest
	case errors.Is(err, raffle.ErrOracleUnavailable), errors.Is(err, raffle.ErrInsufficientRandomnessFunding):
		return http.StatusServiceUnavailable
	case errors.Is(err, raffle.ErrPayoutFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toStatusResponse(s raffle.Snapshot) statusResponse {
	entrants := make([]string, len(s.Entrants))
	for i, entrant := range s.Entrants {
		entrants[i] = entrant.Hex()
	}

	response := statusResponse{
		State:             s.State.String(),
		Round:             s.Round,
		RoundID:           s.RoundID,
		Entrants:          entrants,
		PoolBalance:       s.PoolBalance.String(),
		PoolBalanceNative: fee.ToNative(s.PoolBalance).String(),
		PayoutError:       s.PayoutError,
		UpdatedAt:         s.UpdatedAt,
	}

	if s.PendingRequestID != nil {
		response.PendingRequestID = s.PendingRequestID.Hex()
	}
	if s.RecentWinner != nil {
		response.RecentWinner = s.RecentWinner.Hex()
	}
	if s.PendingWinner != nil {
		response.PendingWinner = s.PendingWinner.Hex()
	}
	if s.LastRandomness != nil {
		response.LastRandomness = s.LastRandomness.String()
	}
	if !s.OpenedAt.IsZero() {
		openedAt := s.OpenedAt
		response.OpenedAt = &openedAt
	}

	return response
}

func toRoundResponse(round *storage.Round) roundResponse {
	response := roundResponse{
		RoundID:    round.RoundID,
		Round:      round.Round,
		Status:     round.Status,
		Winner:     round.Winner,
		Amount:     round.Amount,
		RequestID:  round.RequestID,
		Randomness: round.Randomness,
		Entrants:   round.Entrants,
		Error:      round.Error,
	}

	if round.OpenedAt != 0 {
		openedAt := time.Unix(round.OpenedAt, 0).UTC()
		response.OpenedAt = &openedAt
	}
	if round.SettledAt != 0 {
		settledAt := time.Unix(round.SettledAt, 0).UTC()
		response.SettledAt = &settledAt
	}

	return response
}
