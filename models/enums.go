package models

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "PENDING"
	PaymentStatusRequiresAction PaymentStatus = "REQUIRES_ACTION"
	PaymentStatusSucceeded      PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed         PaymentStatus = "FAILED"
)

type ApplicantStatus string

const (
	ApplicantStatusPending  ApplicantStatus = "PENDING"
	ApplicantStatusAccepted ApplicantStatus = "ACCEPTED"
	// ApplicantStatusPaymentProcessing marks the applicant whose booking
	// payment is in flight; the success webhook promotes them to confirmed.
	ApplicantStatusPaymentProcessing ApplicantStatus = "PAYMENT_PROCESSING"
	ApplicantStatusConfirmed         ApplicantStatus = "CONFIRMED"
	ApplicantStatusPaid              ApplicantStatus = "PAID"
	ApplicantStatusDeclined          ApplicantStatus = "DECLINED"
)

type GigStatus string

const (
	GigStatusOpen   GigStatus = "OPEN"
	GigStatusClosed GigStatus = "CLOSED"
)

// FeeStatus tracks the musician's fee on the gig row: none until payment
// succeeds, pending while held in the dispute window, cleared on release.
type FeeStatus string

const (
	FeeStatusNone    FeeStatus = "NONE"
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusCleared FeeStatus = "CLEARED"
)

type PendingFeeStatus string

const (
	PendingFeeStatusPending   PendingFeeStatus = "PENDING"
	PendingFeeStatusInDispute PendingFeeStatus = "IN_DISPUTE"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
)

type MailStatus string

const (
	MailStatusPending    MailStatus = "PENDING"
	MailStatusProcessing MailStatus = "PROCESSING"
	MailStatusFailed     MailStatus = "FAILED"
	MailStatusSent       MailStatus = "SENT"
	MailStatusDead       MailStatus = "DEAD"
)

type MessageType string

const (
	MessageTypeText         MessageType = "TEXT"
	MessageTypeAnnouncement MessageType = "ANNOUNCEMENT"
	MessageTypeReview       MessageType = "REVIEW"
)
