package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/store"
)

// Account administration normally sits behind the owner route gate; the
// handlers still consult the policy themselves, so a contributor identity
// reaching them directly is refused.
func TestAccountsHandlerDeniesContributors(t *testing.T) {
	h := NewAccountsHandler(&config.Config{}, store.NewMemoryStore(), zap.NewNop())
	contributor := policy.Identity{LoginName: "alice", Role: models.RoleContributor}

	calls := []struct {
		name    string
		method  string
		handler http.HandlerFunc
	}{
		{"list", http.MethodGet, h.ListOwners},
		{"get", http.MethodGet, h.GetContributor},
		{"delete", http.MethodDelete, h.DeleteContributor},
	}
	for _, call := range calls {
		req := httptest.NewRequest(call.method, "/", nil)
		ctx := context.WithValue(req.Context(), middleware.IdentityContextKey, contributor)
		rec := httptest.NewRecorder()
		call.handler(rec, req.WithContext(ctx))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s as contributor: status = %d, want 403", call.name, rec.Code)
		}
	}
}
