package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/karnwit/tabtally/internal/db"
	"github.com/karnwit/tabtally/internal/settle"
)

// API is the HTTP surface over the settlement core. Authentication lives in
// front of this service; the caller's user id arrives as the X-User-ID
// header.
type API struct {
	router  *mux.Router
	store   *db.Store
	tracker *settle.Tracker
	bind    string
}

// New wires the router, stores and tracker.
func New(bind string) *API {
	store := db.NewStore()
	a := &API{
		router: mux.NewRouter(),
		store:  store,
		tracker: settle.NewTracker(
			store,
			store,
			store,
			&settle.LiveTransferSource{Ledger: store},
			&settle.FrozenTransferSource{Settlements: store},
		),
		bind: bind,
	}

	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/api/tabs", a.handleCreateTab).Methods("POST")
	a.router.HandleFunc("/api/tabs/{tab_id}", a.handleGetTab).Methods("GET")
	a.router.HandleFunc("/api/tabs/{tab_id}/participants", a.handleAddParticipant).Methods("POST")
	a.router.HandleFunc("/api/tabs/{tab_id}/participants", a.handleListParticipants).Methods("GET")
	a.router.HandleFunc("/api/tabs/{tab_id}/expenses", a.handleAddExpense).Methods("POST")
	a.router.HandleFunc("/api/tabs/{tab_id}/balances", a.handleGetBalances).Methods("GET")
	a.router.HandleFunc("/api/tabs/{tab_id}/settlement", a.handleGetSettlement).Methods("GET")
	a.router.HandleFunc("/api/tabs/{tab_id}/close", a.handleCloseTab).Methods("POST")

	a.router.HandleFunc("/api/tabs/{tab_id}/acknowledgements", a.handleListAcknowledgements).Methods("GET")
	a.router.HandleFunc("/api/tabs/{tab_id}/acknowledgements", a.handleInitiateAcknowledgement).Methods("POST")
	a.router.HandleFunc("/api/tabs/{tab_id}/acknowledgements/confirm", a.handleConfirmAcknowledgement).Methods("POST")

	a.router.HandleFunc("/api/me/promptpay", a.handleSetPromptPay).Methods("PUT")
	a.router.HandleFunc("/api/tabs/{tab_id}/transfers/{from_id}/{to_id}/qr", a.handleTransferQR).Methods("GET")
}

// Start runs the HTTP server until it fails.
func (a *API) Start() error {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID"},
		AllowCredentials: false,
	}

	handler := cors.New(corsOptions).Handler(a.router)

	log.Printf("API server listening on http://%s", a.bind)
	return http.ListenAndServe(a.bind, handler)
}
