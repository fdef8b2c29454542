package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/scalaya/internal/customer"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/validation"
)

// RegistrationServiceInterface は購入者・出品者登録ハンドラーが必要とするインターフェース。
// customer.Client が実装する。
type RegistrationServiceInterface interface {
	RegisterCustomer(ctx context.Context, data model.CustomerRegistrationData) customer.Result
	RegisterSeller(ctx context.Context, data model.SellerRegistrationData) customer.Result
}

// RegistrationHandler は購入者・出品者登録のHTTPハンドラー。
type RegistrationHandler struct {
	service RegistrationServiceInterface
}

// NewRegistrationHandler はRegistrationHandlerを生成する。
func NewRegistrationHandler(service RegistrationServiceInterface) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

type registrationCreatedResponse struct {
	Message  string             `json:"message"`
	Customer *customer.Customer `json:"customer,omitempty"`
}

type registrationErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details validation.FieldErrors `json:"details,omitempty"`
}

type registrationErrorResponse struct {
	Error registrationErrorBody `json:"error"`
}

// RegisterCustomer は購入者アカウントを登録する。
// POST /api/register/customer
func (h *RegistrationHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var data model.CustomerRegistrationData
	if err := decodeJSON(w, r, &data); err != nil {
		writeRegistrationError(w, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", nil)
		return
	}
	writeRegistrationResult(w, h.service.RegisterCustomer(r.Context(), data))
}

// RegisterSeller は出品者アカウントを登録する。
// POST /api/register/seller
func (h *RegistrationHandler) RegisterSeller(w http.ResponseWriter, r *http.Request) {
	var data model.SellerRegistrationData
	if err := decodeJSON(w, r, &data); err != nil {
		writeRegistrationError(w, http.StatusBadRequest, model.ErrCodeValidation, "Invalid request body", nil)
		return
	}
	writeRegistrationResult(w, h.service.RegisterSeller(r.Context(), data))
}

// writeRegistrationResult は登録結果をHTTPレスポンスに変換する。
func writeRegistrationResult(w http.ResponseWriter, res customer.Result) {
	switch res.Failure {
	case customer.FailureNone:
		if res.Created {
			writeJSON(w, http.StatusCreated, registrationCreatedResponse{
				Message:  res.Message,
				Customer: res.Customer,
			})
			return
		}
	case customer.FailureValidation:
		msg := res.Message
		if msg == "" {
			msg = "Please correct the highlighted fields."
		}
		writeRegistrationError(w, http.StatusBadRequest, customer.CodeValidationError, msg, res.FieldErrors)
		return
	case customer.FailureEmailExists:
		writeRegistrationError(w, http.StatusConflict, customer.CodeEmailExists,
			model.ErrEmailAlreadyExists.Error(), res.FieldErrors)
		return
	case customer.FailureConfiguration:
		writeRegistrationError(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", res.Message, nil)
		return
	case customer.FailureUpstream:
		writeRegistrationError(w, http.StatusBadGateway, model.ErrCodeUpstream, res.Message, nil)
		return
	case customer.FailureTimeout:
		writeRegistrationError(w, http.StatusGatewayTimeout, model.ErrCodeUpstreamTimeout, res.Message, nil)
		return
	}
	writeRegistrationError(w, http.StatusBadGateway, model.ErrCodeUpstream, customer.MessageGenericFailed, nil)
}

func writeRegistrationError(w http.ResponseWriter, status int, code, message string, details validation.FieldErrors) {
	writeJSON(w, status, registrationErrorResponse{
		Error: registrationErrorBody{Code: code, Message: message, Details: details},
	})
}
