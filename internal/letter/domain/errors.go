package domain

import "errors"

var (
	ErrNotFound             = errors.New("letter_not_found")
	ErrInvalidID            = errors.New("invalid_letter_id")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrInvalidLetterType    = errors.New("invalid_letter_type")
	ErrIntakeRequired       = errors.New("intake_data_required")
	ErrFinalContentRequired = errors.New("final_content_required")
	ErrReasonRequired       = errors.New("rejection_reason_required")
	ErrContentRequired      = errors.New("content_required")
	ErrNotSendable          = errors.New("only_approved_letters_can_be_sent")
	ErrNotDownloadable      = errors.New("only_approved_letters_can_be_downloaded")
	ErrInvalidRecipient     = errors.New("invalid_recipient_email")
	ErrInvalidStatus        = errors.New("invalid_letter_status")
)
