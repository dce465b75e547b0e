// internal/api/handler.go
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github-file-miner/internal/database"
)

// Handler is the container for API dependencies.
type Handler struct {
	db     database.Querier
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/missing-projects", h.getMissingProjects)
		r.Route("/repos/{owner}/{name}", func(r chi.Router) {
			r.Get("/", h.getRepo)
			r.Get("/commits", h.getCommits)
			r.Get("/interesting-files", h.getInterestingFiles)
			r.Get("/stats/top-committers", h.getTopCommitters)
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookupRepo resolves the {owner}/{name} route parameters. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) lookupRepo(w http.ResponseWriter, r *http.Request) (database.Repo, bool) {
	repo, err := h.db.GetRepoByFounderAndName(r.Context(), database.GetRepoByFounderAndNameParams{
		Founder: chi.URLParam(r, "owner"),
		Name:    chi.URLParam(r, "name"),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return database.Repo{}, false
		}
		h.logger.Error("Failed to get repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return database.Repo{}, false
	}
	return repo, true
}

// getRepo handles GET /v1/repos/{owner}/{name}
func (h *Handler) getRepo(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// getCommits handles GET /v1/repos/{owner}/{name}/commits
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	commits, err := h.db.GetCommitsByRepoID(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("Failed to get commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commits == nil {
		commits = []database.GetCommitsByRepoIDRow{}
	}

	respondWithJSON(w, http.StatusOK, commits)
}

// getInterestingFiles handles GET /v1/repos/{owner}/{name}/interesting-files
func (h *Handler) getInterestingFiles(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	files, err := h.db.GetInterestingFilesByRepoID(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("Failed to get interesting files", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if files == nil {
		files = []database.InterestingFile{}
	}

	respondWithJSON(w, http.StatusOK, files)
}

// getTopCommitters handles GET /v1/repos/{owner}/{name}/stats/top-committers?limit=N
func (h *Handler) getTopCommitters(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "10"
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return
	}

	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	authors, err := h.db.GetTopNCommitAuthors(r.Context(), database.GetTopNCommitAuthorsParams{
		ReposID: repo.ID,
		Limit:   int32(limit),
	})
	if err != nil {
		h.logger.Error("Failed to get top commit authors", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if authors == nil {
		authors = []database.GetTopNCommitAuthorsRow{}
	}

	respondWithJSON(w, http.StatusOK, authors)
}

// getMissingProjects handles GET /v1/missing-projects
func (h *Handler) getMissingProjects(w http.ResponseWriter, r *http.Request) {
	missing, err := h.db.GetMissingProjects(r.Context())
	if err != nil {
		h.logger.Error("Failed to get missing projects", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if missing == nil {
		missing = []database.MissingProject{}
	}
	respondWithJSON(w, http.StatusOK, missing)
}
