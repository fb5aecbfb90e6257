package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/terra/pkg/routes"
)

func TestRegisterNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	var hit string
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hit = name + ":" + r.PathValue("id")
		}
	}

	routes.Register(mux, routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: handler("find")},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/reprocess", Handler: handler("reprocess")},
				},
			},
		},
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/submissions/42", nil))
	if hit != "find:42" {
		t.Errorf("hit = %q, want find:42", hit)
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/submissions/42/reprocess", nil))
	if hit != "reprocess:42" {
		t.Errorf("hit = %q, want reprocess:42", hit)
	}
}
