package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/mfagate/internal/application/dto"
	"github.com/turtacn/mfagate/internal/application/service"
	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/pkg/constants"
	"github.com/turtacn/mfagate/pkg/errors"
)

// VerifyHandler handles second-factor verification requests.
type VerifyHandler struct {
	verifier service.VerificationService
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifier service.VerificationService) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

// Verify godoc
// @Summary      Verify second factor
// @Description  Decides one verification attempt for a user authenticated by an upstream first factor.
// @Tags         mfa
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  dto.VerifyResponse
// @Failure      401  {object}  dto.VerifyResponse
// @Failure      403  {object}  dto.VerifyResponse
// @Failure      503  {object}  dto.APIResponse
// @Router       /api/v1/mfa/verify [post]
func (h *VerifyHandler) Verify(c *gin.Context) {
	traceID := c.GetString(string(constants.ContextKeyTraceID))

	var req dto.VerifyRequest
	if err := c.ShouldBind(&req); err != nil {
		resp, status := dto.ErrorResponse(errors.ErrInvalidRequest(err.Error()), traceID)
		c.JSON(status, resp)
		return
	}

	// The trusted header set by the first-factor proxy wins over the body.
	username := c.GetHeader(constants.AuthenticatedUserHeader)
	if username == "" {
		username = req.Username
	}

	user := &dto.AuthenticatedUser{
		Identifier:  username,
		Credentials: url.Values{constants.CodeParameterName: []string{req.Code}},
	}

	outcome, err := h.verifier.Verify(c.Request.Context(), user)
	if err != nil {
		resp, status := dto.ErrorResponse(err, traceID)
		if status < http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(statusFor(outcome.Decision), dto.NewVerifyResponse(outcome, traceID))
}

func statusFor(decision models.Decision) int {
	switch decision {
	case models.DecisionAccept:
		return http.StatusOK
	case models.DecisionNeedMoreInput:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

//Personal.AI order the ending
