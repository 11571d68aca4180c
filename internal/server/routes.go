// Package server wires the HTTP surface: health check, WebSocket endpoint,
// upload endpoints, and static serving of stored blobs.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/NeuronPulse/ChatPlus/internal/storage"
)

// SetupRoutes configures and returns the application's HTTP handler. Uploads
// are served read-only from the blob store's root under /uploads/.
func SetupRoutes(gw *Gateway, store *storage.DiskStore, cfg *Config) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", gw.Health).Methods(http.MethodGet)
	router.HandleFunc("/ws", gw.ServeWS).Methods(http.MethodGet)
	router.HandleFunc("/upload", gw.HandleUpload).Methods(http.MethodPost)
	router.HandleFunc("/upload-voice", gw.HandleVoiceUpload).Methods(http.MethodPost)
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Root()))))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}
