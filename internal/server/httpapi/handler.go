package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/accounts"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
)

// Request bodies arrive as flat key/value maps. All string fields are
// trimmed of surrounding whitespace before the engine sees them, so an
// all-whitespace field counts as not supplied.

type signupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Sex       *int   `json:"sex"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrIncompleteArguments)
		return
	}

	result, err := s.accounts.Signup(c.Request.Context(), accounts.SignupParams{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		Password:  strings.TrimSpace(req.Password),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Sex:       req.Sex,
	}, clientOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	credential, err := auth.Encode(result.ID, result.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, gin.H{
		"id":            result.ID,
		"token":         result.Token,
		"authorization": credential,
	})
}

type signinRequest struct {
	Account     string `json:"account"`
	AccountType string `json:"accountType"`
	Password    string `json:"password"`
}

func (s *Server) signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrIncompleteArguments)
		return
	}

	result, err := s.accounts.Signin(c.Request.Context(), accounts.SigninParams{
		Account:     strings.TrimSpace(req.Account),
		AccountType: accounts.AccountType(strings.TrimSpace(req.AccountType)),
		Password:    strings.TrimSpace(req.Password),
	}, clientOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	credential, err := auth.Encode(result.ID, result.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, gin.H{
		"id":            result.ID,
		"token":         result.Token,
		"authorization": credential,
	})
}

func (s *Server) getProfile(c *gin.Context) {
	respondData(c, userOf(c))
}

type setProfileRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Sex       *int   `json:"sex"`
}

func (s *Server) setProfile(c *gin.Context) {
	var req setProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrIncompleteArguments)
		return
	}

	id, err := s.accounts.SetProfile(c.Request.Context(), accounts.UpdateParams{
		ID:        userOf(c).ID,
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Sex:       req.Sex,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, gin.H{"id": id})
}

func (s *Server) signout(c *gin.Context) {
	if err := s.accounts.Signout(c.Request.Context(), userOf(c).ID, clientOf(c)); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, nil)
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.accounts.Delete(c.Request.Context(), userOf(c).ID); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, nil)
}
