package handler

import (
	"net/http"

	"github.com/go-chi/cors"

	"weict/internal/registration/confirmation"
)

// Policy is everything that differs between the two public registration
// routes: CORS, the confirmation layout and the response envelopes.
type Policy struct {
	Name string
	Path string
	// CORS drives go-chi/cors and the headers every response advertises.
	// OptionsPassthrough must stay set so preflights reach the route.
	CORS cors.Options

	Template confirmation.Template

	SuccessMessage     string
	ServerErrorMessage string
	// ExposeErrorDetails adds the raw error text as "details" on 500s.
	ExposeErrorDetails bool
	// PlainTextMethodNotAllowed answers 405 with a text body instead of JSON.
	PlainTextMethodNotAllowed bool
}

// OpenPolicy is the /api/register route used by the public landing page. It
// accepts any origin by default and returns the detailed confirmation.
func OpenPolicy(origin string) Policy {
	if origin == "" {
		origin = "*"
	}
	return Policy{
		Name: "open",
		Path: "/api/register",
		CORS: cors.Options{
			AllowedOrigins: []string{origin},
			AllowedMethods: []string{
				http.MethodGet, http.MethodOptions, http.MethodPatch,
				http.MethodDelete, http.MethodPost, http.MethodPut,
			},
			AllowedHeaders: []string{
				"X-CSRF-Token", "X-Requested-With", "Accept", "Accept-Version",
				"Content-Length", "Content-MD5", "Content-Type", "Date", "X-Api-Version",
			},
			AllowCredentials:   true,
			OptionsPassthrough: true,
		},
		Template:           confirmation.Detailed,
		SuccessMessage:     "Registration successful",
		ServerErrorMessage: "Database or Email Service Error",
		ExposeErrorDetails: true,
	}
}

// PagesPolicy is the /api/resister route used by the GitHub Pages form. It
// only admits the configured origin.
func PagesPolicy(origin string) Policy {
	if origin == "" {
		origin = "https://prothomaa.github.io"
	}
	return Policy{
		Name: "pages",
		Path: "/api/resister",
		CORS: cors.Options{
			AllowedOrigins:     []string{origin},
			AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders:     []string{"Content-Type"},
			OptionsPassthrough: true,
		},
		Template:                  confirmation.Compact,
		SuccessMessage:            "Success",
		ServerErrorMessage:        "Server Error",
		PlainTextMethodNotAllowed: true,
	}
}
