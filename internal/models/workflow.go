package models

import "time"

// WorkflowStage is a step of the enrollment workflow.
type WorkflowStage int

const (
	StageCoursePreview WorkflowStage = iota + 1
	StageCoachSelection
	StageSlotSelection
	StageReview
	StagePayment
)

var stageNames = map[WorkflowStage]string{
	StageCoursePreview:  "course_preview",
	StageCoachSelection: "coach_selection",
	StageSlotSelection:  "slot_selection",
	StageReview:         "review",
	StagePayment:        "payment",
}

func (s WorkflowStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// WorkflowSession is the per-user state of an enrollment workflow run.
type WorkflowSession struct {
	UserID          string        `json:"user_id"`
	UserType        UserType      `json:"user_type"`
	Stage           WorkflowStage `json:"stage"`
	Course          *Course       `json:"course,omitempty"`
	Coach           *Coach        `json:"coach,omitempty"`
	Slot            *TimeSlot     `json:"slot,omitempty"`
	NoMatchingCoach bool          `json:"no_matching_coach"`
	// PaymentOrderRef is the order awaiting a gateway callback.
	PaymentOrderRef string `json:"payment_order_ref,omitempty"`
	// PaidOrderRef is a settled order not yet consumed by an enrollment.
	PaidOrderRef string    `json:"paid_order_ref,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewWorkflowSession starts a run at the course preview stage.
func NewWorkflowSession(userID string, userType UserType, course *Course, now time.Time) *WorkflowSession {
	return &WorkflowSession{
		UserID:    userID,
		UserType:  userType,
		Stage:     StageCoursePreview,
		Course:    course,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// CanAdvance reports whether the guard for leaving the current stage holds.
func (s *WorkflowSession) CanAdvance() bool {
	switch s.Stage {
	case StageCoursePreview:
		return s.Course != nil
	case StageCoachSelection:
		return s.Coach != nil && !s.NoMatchingCoach
	case StageSlotSelection:
		return s.Slot != nil
	case StageReview:
		return true
	default:
		return false
	}
}

// Advance moves one stage forward when the guard holds.
func (s *WorkflowSession) Advance() bool {
	if !s.CanAdvance() {
		return false
	}
	s.Stage++
	return true
}

// Retreat moves one stage back. It never touches selections.
func (s *WorkflowSession) Retreat() bool {
	if s.Stage <= StageCoursePreview {
		return false
	}
	s.Stage--
	return true
}

// Complete reports whether course, coach and a slot of that coach are selected.
func (s *WorkflowSession) Complete() bool {
	return s.Course != nil && s.Coach != nil && s.Slot != nil && s.Slot.CoachID == s.Coach.ID
}

// RequiresPayment reports whether checkout must go through the gateway.
func (s *WorkflowSession) RequiresPayment() bool {
	return s.UserType != UserTypeEmployee && s.Course != nil && !s.Course.IsFree()
}

// Reset clears every selection and returns to the first stage.
func (s *WorkflowSession) Reset() {
	s.Stage = StageCoursePreview
	s.Course = nil
	s.Coach = nil
	s.Slot = nil
	s.NoMatchingCoach = false
	s.PaymentOrderRef = ""
	s.PaidOrderRef = ""
}
