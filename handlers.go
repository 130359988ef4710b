package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/giginltd/gigin_backend/billing"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/tasks"
	"github.com/giginltd/gigin_backend/utils"
)

// maxWebhookBody bounds the Stripe payload read; real events are a few KB.
const maxWebhookBody = 1 << 20

func respondBindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrFeeInDispute),
		errors.Is(err, billing.ErrFeeNotFound),
		errors.Is(err, billing.ErrGigNotPayable),
		errors.Is(err, billing.ErrMissingBandAdmin),
		errors.Is(err, billing.ErrTransfersInactive),
		errors.Is(err, billing.ErrNothingToWithdraw):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, billing.ErrGigAlreadyPaid),
		errors.Is(err, billing.ErrFeeNotCleared),
		errors.Is(err, models.ErrDisputeExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func createIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input billing.CreateIntentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := app.engine.CreateGigPaymentIntent(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func confirmPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input billing.ConfirmInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := app.engine.ConfirmGigPayment(c.Request.Context(), &input)
		if err != nil {
			// A declined card is a request-level failure, not a server error.
			if billing.ClassifyStripeError(err) == billing.DeclineKindCard {
				code, msg := billing.DeclineDetail(err)
				c.JSON(http.StatusPaymentRequired, gin.H{"error": msg, "code": code})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func stripeWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "stripe.webhook")
		defer span.End()

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		sig := c.GetHeader("Stripe-Signature")
		if err := app.webhook.Process(ctx, payload, sig); err != nil {
			if errors.Is(err, billing.ErrBadSignature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad signature"})
				return
			}
			// Non-2xx makes Stripe redeliver; handlers are idempotent so a
			// retry is safe.
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func clearFeeTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload tasks.ClearFeePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondBindError(c, err)
			return
		}
		if err := app.engine.ClearPendingFee(c.Request.Context(), &payload); err != nil {
			if errors.Is(err, billing.ErrFeeInDispute) {
				// 400 tells Cloud Tasks to stop retrying; the dispute flow
				// owns this fee now.
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	}
}

func reviewPromptTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload tasks.ReviewPromptPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondBindError(c, err)
			return
		}
		if err := app.engine.PostReviewPrompt(c.Request.Context(), &payload); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"posted": true})
	}
}

func requeueTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var env tasks.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			respondBindError(c, err)
			return
		}
		name, err := app.engine.HandleRequeue(c.Request.Context(), &env)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_name": name})
	}
}

func cancelTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			TaskName string `json:"task_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		if err := app.engine.CancelTask(c.Request.Context(), input.TaskName); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	}
}

func sweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "payment.sweep")
		defer span.End()

		examined, err := app.sweeper.Sweep(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"examined": examined})
	}
}

func disputeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDispute
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		dispute, err := app.engine.MarkFeeInDispute(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dispute)
	}
}

func payoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input billing.PayoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := app.engine.PayoutToBankAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
