package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/homeserver/internal/netx"
	"github.com/dmitrijs2005/homeserver/internal/server/gate"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/go-chi/chi/v5"
)

const tokenTypeBearer = "bearer"

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// updateRequest leaves absent fields unchanged.
type updateRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type registerResponse struct {
	User *models.Identity `json:"user"`
	tokenResponse
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeJSON(r, &in); err != nil {
		netx.BadRequest(w, "invalid json")
		return
	}

	user, err := a.users.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	token, err := a.users.IssueToken(user)
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}

	netx.WriteJSON(w, http.StatusCreated, registerResponse{
		User:          user,
		tokenResponse: tokenResponse{AccessToken: token, TokenType: tokenTypeBearer},
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		netx.BadRequest(w, "invalid json")
		return
	}

	token, err := a.users.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}

	netx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: tokenTypeBearer})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	netx.WriteJSON(w, http.StatusOK, identity(r))
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in updateRequest
	if err := decodeJSON(r, &in); err != nil {
		netx.BadRequest(w, "invalid json")
		return
	}

	user, err := a.users.UpdateProfile(r.Context(), identity(r).ID, in.Email, in.Password)
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Delete(r.Context(), identity(r).ID); err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if err := gate.RequirePrivileged(identity(r)); err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		netx.BadRequest(w, "invalid user id")
		return
	}

	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, user)
}
