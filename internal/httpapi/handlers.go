// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/internal/session"
)

// MessageResponse carries an acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokensResponse carries a rotated token pair.
type TokensResponse struct {
	Tokens *session.Pair `json:"tokens"`
}

// AccountResponse carries an account summary.
type AccountResponse struct {
	Account account.Summary `json:"account"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type externalRequest struct {
	IDToken string `json:"id_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	ResetToken      string `json:"reset_token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type handlers struct {
	svc Service
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return account.Invalid("HTTP_MALFORMED_BODY", "malformed request body")
	}
	return nil
}

func stageParam(c echo.Context) (int, error) {
	stage, err := strconv.Atoi(c.Param("stage"))
	if err != nil {
		return 0, account.ValidateStage(0)
	}
	return stage, nil
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, MessageResponse{Message: msg})
}

func (h *handlers) register(c echo.Context) error {
	var req auth.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return message(c, http.StatusCreated, msg)
}

func (h *handlers) verifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.VerifyEmail(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *handlers) resendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, msg)
}

func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *handlers) externalSignIn(provider account.Origin) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req externalRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		res, err := h.svc.ExternalSignIn(c.Request().Context(), provider, req.IDToken)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	}
}

func (h *handlers) refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokensResponse{Tokens: pair})
}

func (h *handlers) logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.Logout(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, msg)
}

func (h *handlers) forgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, msg)
}

func (h *handlers) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.ResetPassword(c.Request().Context(), req.ResetToken, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, msg)
}

func (h *handlers) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.svc.ChangePassword(c.Request().Context(), accountID(c),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, msg)
}

func (h *handlers) completeSetupStage(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.CompleteSetupStage(c.Request().Context(), accountID(c), stage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AccountResponse{Account: sum})
}

func (h *handlers) resetSetupStage(c echo.Context) error {
	stage, err := stageParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.ResetSetupStage(c.Request().Context(), accountID(c), stage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AccountResponse{Account: sum})
}
