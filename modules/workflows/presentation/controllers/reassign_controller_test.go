package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow-hq/procflow/modules/workflows/domain/assignee"
	"github.com/procflow-hq/procflow/modules/workflows/domain/reassignment"
	"github.com/procflow-hq/procflow/modules/workflows/presentation/controllers"
	"github.com/procflow-hq/procflow/modules/workflows/services"
	"github.com/procflow-hq/procflow/pkg/composables"
)

type stubReassigner struct {
	cmd       services.ReassignCommand
	accountID uuid.UUID
	summary   *reassignment.RewriteSummary
	err       error
}

func (s *stubReassigner) Reassign(ctx context.Context, cmd services.ReassignCommand) (*reassignment.RewriteSummary, error) {
	s.cmd = cmd
	if accountID, err := composables.UseAccountID(ctx); err == nil {
		s.accountID = accountID
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func newRouter(svc controllers.Reassigner) *mux.Router {
	r := mux.NewRouter()
	controllers.NewReassignController(svc, logrus.New()).Register(r)
	return r
}

func post(t *testing.T, r *mux.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestReassignController(t *testing.T) {
	t.Parallel()

	accountID := uuid.New()
	path := "/accounts/" + accountID.String() + "/reassign"

	t.Run("Success_Renders_Summary", func(t *testing.T) {
		svc := &stubReassigner{summary: &reassignment.RewriteSummary{
			TemplateOwners:      2,
			AffectedTemplateIDs: []int64{5},
			CompletionChecks:    1,
		}}
		rec := post(t, newRouter(svc), path, `{"old_user_id": 3, "new_user_id": 4}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, accountID, svc.accountID)
		require.NotNil(t, svc.cmd.OldUserID)
		assert.Equal(t, int64(3), *svc.cmd.OldUserID)
		require.NotNil(t, svc.cmd.NewUserID)
		assert.Equal(t, int64(4), *svc.cmd.NewUserID)
		assert.Nil(t, svc.cmd.OldGroupID)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(2), body["template_owners"])
		assert.Equal(t, float64(1), body["completion_checks"])
	})

	t.Run("Validation_Error_Maps_To_Code", func(t *testing.T) {
		svc := &stubReassigner{err: assignee.ErrSameUser}
		rec := post(t, newRouter(svc), path, `{"old_user_id": 3, "new_user_id": 3}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "REASSIGN_SAME_USER", body["code"])
	})

	t.Run("Missing_Counterpart_Maps_To_Code", func(t *testing.T) {
		svc := &stubReassigner{err: assignee.ErrNewMissing}
		rec := post(t, newRouter(svc), path, `{"old_user_id": 3}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "REASSIGN_NEW_MISSING", body["code"])
	})

	t.Run("Bad_Account_ID_Rejected", func(t *testing.T) {
		svc := &stubReassigner{}
		rec := post(t, newRouter(svc), "/accounts/not-a-uuid/reassign", `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, uuid.Nil, svc.accountID)
	})

	t.Run("Bad_Body_Rejected", func(t *testing.T) {
		svc := &stubReassigner{}
		rec := post(t, newRouter(svc), path, `{"old_user_id":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "REASSIGN_INVALID_BODY", body["code"])
	})

	t.Run("Internal_Error_Is_500", func(t *testing.T) {
		svc := &stubReassigner{err: assert.AnError}
		rec := post(t, newRouter(svc), path, `{"old_user_id": 3, "new_user_id": 4}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
