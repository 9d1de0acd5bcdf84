package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Talha-Khalil/bet-you-can-t/internal/auth"
	"github.com/Talha-Khalil/bet-you-can-t/internal/cache"
	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/Talha-Khalil/bet-you-can-t/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	minDescriptionLen = 10
	maxCreateBody     = 16 << 10
)

// API is the HTTP surface of the service.
type API struct {
	service  *service.Service
	verifier *auth.Verifier
	cache    cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewAPI(svc *service.Service, verifier *auth.Verifier, c cache.Cache, cacheTTL time.Duration, log *zap.Logger) *API {
	return &API{
		service:  svc,
		verifier: verifier,
		cache:    c,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Routes builds the router. origins lists the allowed CORS origins.
func (a *API) Routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(a.verifier.Middleware)
	r.Use(a.syncSession)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/challenges", a.handleFeed)
		r.Post("/challenges", a.handleCreateChallenge)
		r.Get("/dashboard/challenges", a.handleMyChallenges)
		r.Get("/users/search", a.handleSearchUsers)
	})
	return r
}

// syncSession records the signed-in user on every request. Failures are
// logged and do not block the request.
func (a *API) syncSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.IdentityFrom(r.Context()); id.Email != "" {
			if _, err := a.service.SyncUser(r.Context(), id); err != nil {
				a.log.Error("Error upserting user", zap.String("email", id.Email), zap.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	a.serveCached(w, r, []string{cache.FeedKey}, func() (any, error) {
		entries, err := a.service.Feed(r.Context())
		if err != nil {
			return nil, err
		}
		return map[string]any{"challenges": entries}, nil
	}, "Failed to fetch challenges")
}

func (a *API) handleMyChallenges(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if id.Email == "" {
		errorJSON(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	a.serveCached(w, r, []string{cache.DashboardKey(id.Email), cache.DashboardsKey}, func() (any, error) {
		entries, err := a.service.MyChallenges(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"challenges": entries}, nil
	}, "Failed to fetch challenges")
}

type createChallengeReq struct {
	Description     string `json:"description"`
	Charity         string `json:"charity"`
	Deadline        string `json:"deadline"`
	ChallengedEmail string `json:"challengedEmail"`
}

func (a *API) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var in createChallengeReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBody)).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	input, msg := in.validate(time.Now())
	if msg != "" {
		errorJSON(w, http.StatusBadRequest, msg)
		return
	}

	challenge, err := a.service.CreateChallenge(r.Context(), auth.IdentityFrom(r.Context()), input)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "challenge": challenge})
	case errors.Is(err, service.ErrUnauthenticated):
		errorJSON(w, http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, service.ErrChallengerNotFound):
		errorJSON(w, http.StatusNotFound, "Challenger user not found")
	default:
		errorJSON(w, http.StatusInternalServerError, "Failed to create challenge")
	}
}

// validate applies the form rules and returns the first failure message.
func (in createChallengeReq) validate(now time.Time) (models.NewChallenge, string) {
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) < minDescriptionLen {
		return models.NewChallenge{}, "Description must be at least 10 characters"
	}

	email := strings.TrimSpace(in.ChallengedEmail)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return models.NewChallenge{}, "Invalid email address"
	}

	if strings.TrimSpace(in.Deadline) == "" {
		return models.NewChallenge{}, "Please select a deadline"
	}
	deadline, err := ParseDeadline(in.Deadline, now)
	if err != nil {
		return models.NewChallenge{}, "Invalid deadline"
	}

	return models.NewChallenge{
		Description:     description,
		Charity:         strings.TrimSpace(in.Charity),
		Deadline:        deadline,
		ChallengedEmail: email,
	}, ""
}

func (a *API) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.log.Error("Error searching users", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "Failed to search users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// serveCached answers from the view cache, filling it on a miss. deps name
// the generations the view depends on, the first one naming the view. The
// versioned key is read before loading, so an invalidation that lands
// while the load is running sends the fill to a key nobody reads. Cache
// errors fall through to the store.
func (a *API) serveCached(w http.ResponseWriter, r *http.Request, deps []string, load func() (any, error), failMsg string) {
	ctx := r.Context()
	key, err := cache.ViewKey(ctx, a.cache, deps...)
	if err != nil {
		a.log.Warn("Cache generation read failed", zap.String("key", deps[0]), zap.Error(err))
	} else if body, ok, err := a.cache.Get(ctx, key); err != nil {
		a.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, body)
		return
	}

	v, err := load()
	if err != nil {
		status := http.StatusInternalServerError
		msg := failMsg
		if errors.Is(err, service.ErrUnauthenticated) {
			status, msg = http.StatusUnauthorized, "Not authenticated"
		}
		errorJSON(w, status, msg)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, failMsg)
		return
	}
	if key != "" {
		if err := a.cache.Set(ctx, key, body, a.cacheTTL); err != nil {
			a.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":"encode failed"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorJSON writes the structured failure shape shared by every endpoint.
func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
