package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func BuyerPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "buyer", "status": "ok"}
		if buyer := middleware.BuyerIDFromContext(r.Context()); buyer != uuid.Nil {
			payload["buyer_id"] = buyer.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
