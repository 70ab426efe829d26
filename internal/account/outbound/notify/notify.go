// Package notify delivers verification codes over email and SMS.
package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/mail"
	"github.com/otpgate/otpgate/internal/pkg/sms"
)

type Notify struct {
	mailer mail.Mail
	texter sms.SMS
	ins    instrument.Instrumentation
}

func New(mailer mail.Mail, texter sms.SMS, ins instrument.Instrumentation) *Notify {
	return &Notify{mailer: mailer, texter: texter, ins: ins}
}

func (n *Notify) SendEmailCode(ctx context.Context, email string, purpose entity.Purpose, code string) error {
	ctx, span := n.ins.Tracer("account.outbound.notify").Start(ctx, "SendEmailCode")
	defer span.End()

	subject, intro := emailCopy(purpose)
	err := n.mailer.Send(ctx, mail.Message{
		To:       []string{email},
		Subject:  subject,
		TextBody: fmt.Sprintf("%s\n\nYour verification code is %s. It expires in a few minutes. If you did not request this, ignore this message.", intro, code),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (n *Notify) SendPhoneCode(ctx context.Context, phone string, purpose entity.Purpose, code string) error {
	ctx, span := n.ins.Tracer("account.outbound.notify").Start(ctx, "SendPhoneCode")
	defer span.End()

	err := n.texter.Send(ctx, sms.Message{
		To:   phone,
		Body: fmt.Sprintf("%s is your verification code.", code),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func emailCopy(purpose entity.Purpose) (subject, intro string) {
	switch purpose {
	case entity.PurposeForgotPassword:
		return "Reset your password", "We received a request to reset your password."
	case entity.PurposeEmailVerification:
		return "Verify your email address", "Welcome! Confirm this email address to activate your account."
	default:
		return "Your verification code", "Use the code below to continue."
	}
}
