package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter 看板路由
func NewRouter(u *UsersHandler, hb *HeartbeatHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/users/upload", u.Upload).Methods(http.MethodPost)
	api.HandleFunc("/users", u.List).Methods(http.MethodGet)
	api.HandleFunc("/users/options", u.Options).Methods(http.MethodGet)
	api.HandleFunc("/users/stats", u.Stats).Methods(http.MethodGet)
	api.HandleFunc("/users/locations", u.Locations).Methods(http.MethodGet)
	api.HandleFunc("/users/export", u.Export).Methods(http.MethodGet)
	api.HandleFunc("/sample", u.Sample).Methods(http.MethodGet)
	api.HandleFunc("/sample/csv", u.SampleCSV).Methods(http.MethodGet)

	api.HandleFunc("/heartbeat/users", hb.Users).Methods(http.MethodGet)
	api.HandleFunc("/heartbeat/{user_id}", hb.Series).Methods(http.MethodGet)
	api.HandleFunc("/heartbeat/{user_id}/ws", hb.Feed).Methods(http.MethodGet)

	return r
}

// Wrap 访问日志 + CORS
func Wrap(h http.Handler, logger *zap.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(zap.NewStdLog(logger).Writer(), cors(h))
}
