package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
)

// ActionName is the wire name of an administrative action
type ActionName string

const (
	ActionLogAction          ActionName = "log_action"
	ActionSuspendMember      ActionName = "suspend_member"
	ActionRejectMember       ActionName = "reject_member"
	ActionDeleteMember       ActionName = "delete_member"
	ActionApproveUser        ActionName = "approve_user"
	ActionApprovePayment     ActionName = "approve_payment"
	ActionAssignOfficialRole ActionName = "assign_official_role"

	// ActionMemberLifecycle selects suspend, reject or permanent delete through a mode field.
	ActionMemberLifecycle ActionName = "member_lifecycle"
)

// Lifecycle modes accepted by member_lifecycle
const (
	LifecycleModeSuspend   = "suspend"
	LifecycleModeReject    = "reject"
	LifecycleModePermanent = "permanent"
)

// Action is the closed set of administrative actions.
// Only types in this package implement it.
type Action interface {
	Name() ActionName
	isAction()
}

// LogAction appends a free-form audit entry
type LogAction struct {
	Event      string                 `json:"event" validate:"required,max=100"`
	EntityType string                 `json:"entity_type" validate:"required,max=50"`
	EntityID   *string                `json:"entity_id,omitempty" validate:"omitempty,max=64"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// SuspendMember suspends a member without redacting personal data
type SuspendMember struct {
	MemberID string `json:"member_id" validate:"required,max=64"`
	Reason   string `json:"reason,omitempty" validate:"max=1000"`
}

// RejectMember suspends and redacts a member, optionally deleting the account
type RejectMember struct {
	MemberID      string `json:"member_id" validate:"required,max=64"`
	Reason        string `json:"reason,omitempty" validate:"max=1000"`
	DeleteAccount bool   `json:"delete_account,omitempty"`
	Confirmation  string `json:"confirmation,omitempty" validate:"max=200"`
	Force         bool   `json:"force,omitempty"`
}

// DeleteMember permanently removes a member and every dependent record
type DeleteMember struct {
	MemberID     string `json:"member_id" validate:"required,max=64"`
	Confirmation string `json:"confirmation" validate:"max=200"`
	Force        bool   `json:"force,omitempty"`
}

// ApproveUser activates a member
type ApproveUser struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// ApprovePayment records a payment approval in the audit log
type ApprovePayment struct {
	PaymentID string `json:"payment_id" validate:"required,max=64"`
}

// AssignOfficialRole grants an official role, replacing any previous one
type AssignOfficialRole struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Role   Role   `json:"role" validate:"required"`
}

func (LogAction) Name() ActionName          { return ActionLogAction }
func (SuspendMember) Name() ActionName      { return ActionSuspendMember }
func (RejectMember) Name() ActionName       { return ActionRejectMember }
func (DeleteMember) Name() ActionName       { return ActionDeleteMember }
func (ApproveUser) Name() ActionName        { return ActionApproveUser }
func (ApprovePayment) Name() ActionName     { return ActionApprovePayment }
func (AssignOfficialRole) Name() ActionName { return ActionAssignOfficialRole }

func (LogAction) isAction()          {}
func (SuspendMember) isAction()      {}
func (RejectMember) isAction()       {}
func (DeleteMember) isAction()       {}
func (ApproveUser) isAction()        {}
func (ApprovePayment) isAction()     {}
func (AssignOfficialRole) isAction() {}

// memberLifecycle is the wire form of the member_lifecycle action
type memberLifecycle struct {
	Mode          string `json:"mode"`
	MemberID      string `json:"member_id"`
	Reason        string `json:"reason"`
	DeleteAccount bool   `json:"delete_account"`
	Confirmation  string `json:"confirmation"`
	Force         bool   `json:"force"`
}

func (m memberLifecycle) toAction() (Action, error) {
	switch strings.ToLower(strings.TrimSpace(m.Mode)) {
	case LifecycleModeSuspend:
		return SuspendMember{MemberID: m.MemberID, Reason: m.Reason}, nil
	case LifecycleModeReject:
		return RejectMember{
			MemberID:      m.MemberID,
			Reason:        m.Reason,
			DeleteAccount: m.DeleteAccount,
			Confirmation:  m.Confirmation,
			Force:         m.Force,
		}, nil
	case LifecycleModePermanent:
		return DeleteMember{MemberID: m.MemberID, Confirmation: m.Confirmation, Force: m.Force}, nil
	default:
		return nil, apperrors.ValidationErrorWithDetails("INVALID_MODE",
			"mode must be one of suspend, reject, permanent",
			map[string]interface{}{"mode": m.Mode})
	}
}

// DecodeAction reads the action envelope and decodes its typed payload.
// Field validation is left to ValidateAction so authorization can run first.
func DecodeAction(body []byte) (Action, error) {
	var envelope struct {
		Action ActionName `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.ValidationError("INVALID_REQUEST_BODY", "Invalid JSON request body")
	}
	if envelope.Action == "" {
		return nil, apperrors.ValidationErrorWithDetails("MISSING_FIELD", "action is required",
			map[string]interface{}{"field": "action"})
	}

	switch envelope.Action {
	case ActionLogAction:
		return decodeInto[LogAction](body)
	case ActionSuspendMember:
		return decodeInto[SuspendMember](body)
	case ActionRejectMember:
		return decodeInto[RejectMember](body)
	case ActionDeleteMember:
		return decodeInto[DeleteMember](body)
	case ActionApproveUser:
		return decodeInto[ApproveUser](body)
	case ActionApprovePayment:
		return decodeInto[ApprovePayment](body)
	case ActionAssignOfficialRole:
		return decodeInto[AssignOfficialRole](body)
	case ActionMemberLifecycle:
		var lifecycle memberLifecycle
		if err := json.Unmarshal(body, &lifecycle); err != nil {
			return nil, apperrors.ValidationError("INVALID_REQUEST_BODY", "Invalid member_lifecycle payload")
		}
		return lifecycle.toAction()
	default:
		return nil, apperrors.ValidationErrorWithDetails("UNKNOWN_ACTION",
			fmt.Sprintf("Unknown action: %s", envelope.Action),
			map[string]interface{}{"action": string(envelope.Action)})
	}
}

func decodeInto[T Action](body []byte) (Action, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.ValidationErrorWithDetails("INVALID_REQUEST_BODY",
			fmt.Sprintf("Invalid %s payload", payload.Name()),
			map[string]interface{}{"reason": err.Error()})
	}
	return payload, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateAction checks the payload's field constraints.
// The first failing field is reported in details.field.
func ValidateAction(action Action) error {
	err := validate.Struct(action)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		message := fmt.Sprintf("%s is invalid", fe.Field())
		if fe.Tag() == "required" {
			message = fmt.Sprintf("%s is required", fe.Field())
		}
		return apperrors.ValidationErrorWithDetails("INVALID_FIELD", message,
			map[string]interface{}{"field": fe.Field(), "rule": fe.Tag()})
	}
	return apperrors.ValidationError("INVALID_REQUEST_BODY", err.Error())
}
