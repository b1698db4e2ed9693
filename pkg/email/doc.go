// Package email sends operator notifications through Postmark.
//
// NewSender picks the backend from Config: Postmark when both tokens are
// set, otherwise a DevSender that writes each message to disk as an HTML
// body plus JSON metadata. Both validate SendEmailParams before doing any
// work and report failures wrapped in ErrFailedToSendEmail.
package email
