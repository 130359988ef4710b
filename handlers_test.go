package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/giginltd/gigin_backend/billing"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/utils"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		// A missing fee is permanent; the task queue must stop retrying.
		{"missing fee is a bad request", fmt.Errorf("intent pi_1: %w", billing.ErrFeeNotFound), http.StatusBadRequest},
		{"dispute blocks clearance", billing.ErrFeeInDispute, http.StatusBadRequest},
		{"already paid conflicts", billing.ErrGigAlreadyPaid, http.StatusConflict},
		{"duplicate dispute conflicts", models.ErrDisputeExists, http.StatusConflict},
		{"wrapped missing record is not found", fmt.Errorf("gig gig-1: %w", utils.ErrorRecordNotFound), http.StatusNotFound},
		// Only the sentinel routes to 404; matching words in a wrapped
		// provider message must not.
		{"similar text without the sentinel stays internal", errors.New(`upstream said "customer not found"`), http.StatusInternalServerError},
		{"unclassified errors stay internal", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tc.err)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
