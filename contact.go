package leadpress

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/analytics"
	"github.com/eringen/leadpress/content"
)

// Field caps applied after trimming.
const (
	maxNameLen    = 100
	maxEmailLen   = 255
	maxMessageLen = 2000
)

const contactThanks = "Thank you for reaching out! We'll be in touch within 24 hours."

// contactRequest is the submit-contact body.
type contactRequest struct {
	Name           string `json:"name" validate:"required,min=2"`
	Email          string `json:"email" validate:"required,email"`
	Company        string `json:"company"`
	AreaOfInterest string `json:"areaOfInterest"`
	Message        string `json:"message" validate:"required,min=10"`
	Source         string `json:"source" validate:"required,oneof=contact consultation"`
}

func (r *contactRequest) normalize() {
	r.Name = content.Truncate(strings.TrimSpace(r.Name), maxNameLen)
	r.Email = content.Truncate(strings.TrimSpace(r.Email), maxEmailLen)
	r.Company = content.Truncate(strings.TrimSpace(r.Company), maxNameLen)
	r.AreaOfInterest = content.Truncate(strings.TrimSpace(r.AreaOfInterest), maxNameLen)
	r.Message = content.Truncate(strings.TrimSpace(r.Message), maxMessageLen)
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
}

type contactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (a *App) handleSubmitContact(c echo.Context) error {
	ipHash := analytics.HashIP(a.ipSalt, c.RealIP())
	if !a.contactLimiter.Allow(ipHash) {
		a.metrics.contacts.WithLabelValues("", "rate_limited").Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many submissions, try again in a minute")
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		a.metrics.contacts.WithLabelValues(req.Source, "invalid").Inc()
		return err
	}

	sub, err := a.Store.CreateContactSubmission(c.Request().Context(), content.ContactSubmission{
		Name:           req.Name,
		Email:          req.Email,
		Company:        req.Company,
		AreaOfInterest: req.AreaOfInterest,
		Message:        req.Message,
		Source:         req.Source,
	})
	if err != nil {
		a.metrics.contacts.WithLabelValues(req.Source, "error").Inc()
		return fmt.Errorf("save contact submission: %w", err)
	}
	a.metrics.contacts.WithLabelValues(req.Source, "ok").Inc()
	a.Logger.Info("contact submission stored",
		zap.String("id", sub.ID),
		zap.String("source", sub.Source),
		zap.String("ip_hash", ipHash),
	)
	return c.JSON(http.StatusOK, contactResponse{Success: true, Message: contactThanks, ID: sub.ID})
}

// requestValidator adapts go-playground/validator to echo.Validator and
// reports the first violation as a 400 with a readable message.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	return echo.NewHTTPError(http.StatusBadRequest, violation(errs[0]))
}

func violation(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", field)
}
