package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/procflow-hq/procflow/modules/workflows/domain/reassignment"
	"github.com/procflow-hq/procflow/modules/workflows/services"
	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/serrors"
)

// Reassigner is the service surface the controller needs.
type Reassigner interface {
	Reassign(ctx context.Context, cmd services.ReassignCommand) (*reassignment.RewriteSummary, error)
}

// ReassignController exposes the reassignment engine over HTTP. Validation
// failures render the stable error codes so clients can distinguish a
// same-identity request from a missing counterpart.
type ReassignController struct {
	basePath string
	service  Reassigner
	log      *logrus.Logger
}

func NewReassignController(service Reassigner, log *logrus.Logger) *ReassignController {
	return &ReassignController{
		basePath: "/accounts",
		service:  service,
		log:      log,
	}
}

func (c *ReassignController) Key() string {
	return c.basePath
}

func (c *ReassignController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/{id}/reassign", c.reassign).Methods(http.MethodPost)
}

type reassignRequest struct {
	OldUserID  *int64 `json:"old_user_id"`
	OldGroupID *int64 `json:"old_group_id"`
	NewUserID  *int64 `json:"new_user_id"`
	NewGroupID *int64 `json:"new_group_id"`
}

func (c *ReassignController) reassign(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "REASSIGN_INVALID_ACCOUNT", "account id must be a UUID")
		return
	}

	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "REASSIGN_INVALID_BODY", "request body must be valid JSON")
		return
	}

	ctx := composables.WithAccountID(r.Context(), accountID)
	summary, err := c.service.Reassign(ctx, services.ReassignCommand{
		OldUserID:  req.OldUserID,
		OldGroupID: req.OldGroupID,
		NewUserID:  req.NewUserID,
		NewGroupID: req.NewGroupID,
	})
	if err != nil {
		var base *serrors.Base
		if errors.As(err, &base) {
			writeJSONError(w, http.StatusBadRequest, base.Code, base.Message)
			return
		}
		c.log.WithError(err).WithField("account_id", accountID).Error("reassignment failed")
		writeJSONError(w, http.StatusInternalServerError, "REASSIGN_FAILED", "reassignment failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
