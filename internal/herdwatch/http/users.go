package http

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/herdwatch/herdwatch/internal/herdwatch/domain"
	"github.com/herdwatch/herdwatch/internal/herdwatch/service"
	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/herdwatch/herdwatch/pkg/httpx"
)

// UsersHandler serves account reads and updates. Role checks happen here,
// after authentication, through service.Authorize.
type UsersHandler struct {
	AccountService *service.AccountService

	validate *validator.Validate
}

// HandleGetMe godoc
//
//	@Summary		Own profile
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.APIError
//	@Router			/users/me [get].
func (h *UsersHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(*identity(r))})
}

// HandleUpdateMe godoc
//
//	@Summary		Update own profile
//	@Description	Replaces fullName, phone and language when present. farmerProfile is merged for farmers,
//	@Description	vetProfile for vets. The vet verified flag cannot be changed here.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.UpdateProfileRequest	true	"fields to change"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError
//	@Failure		401		{object}	authsdk.APIError
//	@Router			/users/me [put].
func (h *UsersHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.AccountService.UpdateProfile(r.Context(), identity(r).ID, service.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Language: req.Language,
		Farmer:   farmerPatch(req.FarmerProfile),
		Vet:      vetPatch(req.VetProfile),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{Message: "Profile updated successfully", User: toUser(acc)})
}

// HandleList godoc
//
//	@Summary		List accounts
//	@Description	Newest first. limit defaults to 10 and is capped at 100.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			role	query		string	false	"farmer, vet or admin"
//	@Param			page	query		int		false	"page number, from 1"
//	@Param			limit	query		int		false	"page size"
//	@Success		200		{object}	authsdk.UsersResponse
//	@Failure		401		{object}	authsdk.APIError
//	@Failure		403		{object}	authsdk.APIError
//	@Router			/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := service.Authorize(identity(r), domain.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}

	page, limit := pageParams(r)
	res, err := h.AccountService.ListAccounts(r.Context(), service.ListQuery{
		Role:  r.URL.Query().Get("role"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUsers(res))
}

// HandleGet godoc
//
//	@Summary		Get account
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"account id"
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.APIError
//	@Failure		403	{object}	authsdk.APIError
//	@Failure		404	{object}	authsdk.APIError	"user_not_found"
//	@Router			/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if err := service.Authorize(identity(r), domain.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.AccountService.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: toUser(acc)})
}

// HandleVerification godoc
//
//	@Summary		Set vet verification
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"vet account id"
//	@Param			body	body		authsdk.VerificationRequest	true	"verified flag"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.APIError	"account is not a vet"
//	@Failure		403		{object}	authsdk.APIError
//	@Failure		404		{object}	authsdk.APIError
//	@Router			/users/{id}/verification [put].
func (h *UsersHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	if err := service.Authorize(identity(r), domain.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}

	var req authsdk.VerificationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	acc, err := h.AccountService.SetVetVerification(r.Context(), r.PathValue("id"), req.Verified)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{Message: "Verification updated", User: toUser(acc)})
}

// HandleListFarmers godoc
//
//	@Summary		Farmer directory
//	@Description	Lists farmer accounts. Only vets approved by an administrator may call it.
//	@Tags			Vets
//	@Security		BearerAuth
//	@Produce		json
//	@Param			page	query		int	false	"page number, from 1"
//	@Param			limit	query		int	false	"page size"
//	@Success		200		{object}	authsdk.UsersResponse
//	@Failure		401		{object}	authsdk.APIError
//	@Failure		403		{object}	authsdk.APIError
//	@Router			/vets/farmers [get].
func (h *UsersHandler) HandleListFarmers(w http.ResponseWriter, r *http.Request) {
	if err := service.RequireVerifiedProfessional(identity(r)); err != nil {
		writeError(w, r, err)
		return
	}

	page, limit := pageParams(r)
	res, err := h.AccountService.ListFarmers(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUsers(res))
}

// pageParams reads page and limit. Junk values become zero, which the
// service replaces with its defaults.
func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}
