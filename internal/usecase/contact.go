package usecase

import (
	"context"
	"net/http"
	"strings"

	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/logger"

	"go.uber.org/zap"
)

type contactUsecase struct {
	mailer domain.Mailer
}

// NewContactUsecase creates a new contact usecase
func NewContactUsecase(mailer domain.Mailer) domain.ContactUsecase {
	return &contactUsecase{
		mailer: mailer,
	}
}

// SendContactMessage validates the contact request and sends the email
func (uc *contactUsecase) SendContactMessage(ctx context.Context, req *domain.ContactRequest) error {
	// Binding already ran; whitespace-only values still slip through
	msg := domain.ContactEmail{
		SenderName:  strings.TrimSpace(req.Name),
		SenderEmail: strings.TrimSpace(req.Email),
		Subject:     strings.TrimSpace(req.Subject),
		Message:     strings.TrimSpace(req.Message),
	}
	switch {
	case msg.SenderName == "":
		return apperror.BadRequest("Name is required")
	case msg.SenderEmail == "":
		return apperror.BadRequest("Email is required")
	case msg.Subject == "":
		return apperror.BadRequest("Subject is required")
	case msg.Message == "":
		return apperror.BadRequest("Message is required")
	}

	if !uc.mailer.IsConfigured() {
		return apperror.Unavailable("Contact form is temporarily unavailable", nil)
	}

	if err := uc.mailer.SendContact(ctx, msg); err != nil {
		logger.Log.Error("failed to send contact email", zap.Error(err))
		return apperror.New(http.StatusBadGateway, "Failed to send message. Please try again later.", err)
	}
	return nil
}
