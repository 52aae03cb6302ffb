package rest

import (
	"github.com/formmailer/formmailer/pkg/server/web"
	"github.com/gorilla/mux"
)

// SetupRoutes populates the routes for the REST interface
func SetupRoutes(r *mux.Router) {
	// API v1
	r.Path("/v1/forms/{form:.+}/submissions").Handler(
		web.Handler(FormSubmissionsV1)).Name("FormSubmissionsV1").Methods("GET")
	r.Path("/v1/submissions/{id}").Handler(
		web.Handler(SubmissionShowV1)).Name("SubmissionShowV1").Methods("GET")
	r.Path("/v1/submissions/{id}").Handler(
		web.Handler(SubmissionDeleteV1)).Name("SubmissionDeleteV1").Methods("DELETE")
}
