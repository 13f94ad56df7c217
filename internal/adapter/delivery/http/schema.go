package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/url-shortener/internal/entity"
)

const statusError = "error"

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	OriginalURL       string `json:"original_url" validate:"required,max=2048"`
	ExpirationMinutes *int   `json:"expiration_minutes" validate:"omitempty,gte=0,lte=52560000"`
}

// urlResponse represents the structure for a response containing shortened URL information.
type urlResponse struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// toURLResponse converts an entity.URL to a urlResponse.
func toURLResponse(url *entity.URL, baseURL string) urlResponse {
	resp := urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		ShortURL:    url.ShortURL(baseURL),
		OriginalURL: url.OriginalURL,
		ClickCount:  url.ClickCount,
		CreatedAt:   url.CreatedAt,
	}

	if at, ok := url.ExpiresAt.Time(); ok {
		resp.ExpiresAt = &at
	}

	return resp
}

// listedURLResponse is a urlResponse flagged with its expiration state.
type listedURLResponse struct {
	urlResponse
	IsExpired bool `json:"is_expired"`
}

func toListedURLResponses(urls []entity.ListedURL, baseURL string) []listedURLResponse {
	resp := make([]listedURLResponse, 0, len(urls))

	for i := range urls {
		resp = append(resp, listedURLResponse{
			urlResponse: toURLResponse(&urls[i].URL, baseURL),
			IsExpired:   urls[i].Expired,
		})
	}

	return resp
}

// qrCodeResponse carries a base64 encoded PNG QR code.
type qrCodeResponse struct {
	QRCode      string `json:"qr_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	Size        int    `json:"size"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	qrCodeCapacityExceededResponse = errorResponse{
		Status:  statusError,
		Message: "url too long to encode as qr code",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "max":
		return "value is too long"
	case "gte":
		return "value must not be negative"
	case "lte":
		return "value is too large"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}

// ruleViolationResponse constructs an errorResponse for input rejected by a business rule.
func ruleViolationResponse(err *entity.ValidationError) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors: []validationError{
			{Field: err.Field, Message: err.Message},
		},
	}
}
