// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package models defines the data structures shared between the API,
// database, mailer, and pass rendering layers.
package models

import (
	"time"
)

// VisitorStatus is the lifecycle state of a visitor record.
//
// Transitions only leave pending: pending -> approved, rejected, or
// expired. No transition is ever reversed and records are never
// deleted.
type VisitorStatus string

const (
	StatusPending  VisitorStatus = "pending"
	StatusApproved VisitorStatus = "approved"
	StatusRejected VisitorStatus = "rejected"
	StatusExpired  VisitorStatus = "expired"
)

// Valid reports whether s is a known lifecycle state.
func (s VisitorStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Decided reports whether s is a terminal host decision.
func (s VisitorStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Person types accepted at registration.
const (
	PersonTypeVendor     = "Vendor"
	PersonTypeContractor = "Contractor"
	PersonTypeGuest      = "Guest"
)

// VisitorRecord is a registered visit request.
//
// VisitorCode and ApprovalToken are assigned exactly once at creation.
// PDFURL is set only after a successful approval and pass upload.
type VisitorRecord struct {
	ID          string `json:"_id"`
	VisitorCode string `json:"visitorCode"`

	Name          string `json:"name"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile"`
	NationalID    string `json:"aadharNumber"`
	Purpose       string `json:"purpose"`
	ToMeet        string `json:"toMeet,omitempty"`
	OtherPerson   string `json:"otherPerson,omitempty"`
	PersonType    string `json:"personType"`
	CompanyName   string `json:"companyName"`
	GateNumber    int    `json:"gateNumber"`
	Laptop        string `json:"laptop"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	HostEmail     string `json:"hostEmail"`
	HostPhone     string `json:"hostPhone,omitempty"`
	PhotoURL      string `json:"photoUrl"`

	Status         VisitorStatus `json:"status"`
	ApprovalToken  string        `json:"-"`
	TokenExpiresAt time.Time     `json:"tokenExpiresAt"`
	DecisionAt     *time.Time    `json:"decisionAt,omitempty"`
	ApprovedBy     string        `json:"approvedBy,omitempty"`
	PDFURL         string        `json:"pdfUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterVisitorRequest is the payload for POST /visitors/register.
// Photo carries the captured image as base64, optionally with a
// data:image/...;base64, prefix.
type RegisterVisitorRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,email"`
	Mobile        string `json:"mobile" validate:"required,numeric,min=10,max=15"`
	NationalID    string `json:"aadharNumber" validate:"required,max=20"`
	Purpose       string `json:"purpose" validate:"required,max=500"`
	ToMeet        string `json:"toMeet" validate:"omitempty,max=200"`
	OtherPerson   string `json:"otherPerson" validate:"omitempty,max=200"`
	PersonType    string `json:"personType" validate:"required,oneof=Vendor Contractor Guest"`
	CompanyName   string `json:"companyName" validate:"required,max=200"`
	GateNumber    int    `json:"gateNumber" validate:"required,oneof=1 2"`
	Laptop        string `json:"laptop" validate:"omitempty,oneof=Yes No"`
	VehicleNumber string `json:"vehicleNumber" validate:"omitempty,max=20"`
	HostEmail     string `json:"hostEmail" validate:"required,email"`
	HostPhone     string `json:"hostPhone" validate:"omitempty,max=15"`
	Photo         string `json:"photo" validate:"required"`
}

// VisitorStatusInfo is the trimmed payload for the polling endpoint
// GET /visitors/status/{id}.
type VisitorStatusInfo struct {
	ID          string        `json:"_id"`
	Status      VisitorStatus `json:"status"`
	Name        string        `json:"name"`
	VisitorCode string        `json:"visitorCode"`
}

// StatusInfo returns the polling view of the record.
func (v *VisitorRecord) StatusInfo() VisitorStatusInfo {
	return VisitorStatusInfo{
		ID:          v.ID,
		Status:      v.Status,
		Name:        v.Name,
		VisitorCode: v.VisitorCode,
	}
}

// TokenExpired reports whether the approval token has passed its
// expiry at the given instant.
func (v *VisitorRecord) TokenExpired(now time.Time) bool {
	return now.After(v.TokenExpiresAt)
}

// VisitorStats summarizes record counts per lifecycle state.
type VisitorStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Expired  int64 `json:"expired"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
