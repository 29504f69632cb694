package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"matchmaking-service/internal/errs"
	"matchmaking-service/internal/telemetry"
)

// respondError renders err as {"error": {"kind", "message", "details"}}.
// Internal failures are audited and their cause is not exposed.
func respondError(c *gin.Context, audit *telemetry.AuditEmitter, operation string, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Wrap(errs.KindInternal, "internal error", err)
	}

	body := gin.H{"kind": e.Kind, "message": e.Message}
	if e.Kind == errs.KindInternal {
		body["message"] = "internal error"
		emitAudit(c, audit, "ERROR", operation, err.Error())
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	c.JSON(e.Kind.HTTPStatus(), gin.H{"error": body})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(errs.KindInvalidArgument.HTTPStatus(), gin.H{"error": gin.H{"kind": errs.KindInvalidArgument, "message": message}})
}
