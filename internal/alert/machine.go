package alert

import (
	"strings"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"
)

// Transition 生命周期操作
type Transition string

const (
	TransitionAcknowledge Transition = "acknowledge"
	TransitionRespond     Transition = "respond"
	TransitionResolve     Transition = "resolve"
	TransitionFalseAlarm  Transition = "false_alarm"
	TransitionCancel      Transition = "cancel"
)

var targets = map[Transition]models.AlertStatus{
	TransitionAcknowledge: models.StatusAcknowledged,
	TransitionRespond:     models.StatusResponding,
	TransitionResolve:     models.StatusResolved,
	TransitionFalseAlarm:  models.StatusFalseAlarm,
	TransitionCancel:      models.StatusCanceled,
}

// edges 合法迁移。resolve 与 cancel 可从任一非终态发起。
var edges = map[models.AlertStatus][]models.AlertStatus{
	models.StatusActive:       {models.StatusAcknowledged, models.StatusResolved, models.StatusCanceled},
	models.StatusAcknowledged: {models.StatusResponding, models.StatusResolved, models.StatusFalseAlarm, models.StatusCanceled},
	models.StatusResponding:   {models.StatusResolved, models.StatusFalseAlarm, models.StatusCanceled},
}

// Target 操作对应的目标状态
func (t Transition) Target() (models.AlertStatus, bool) {
	s, ok := targets[t]
	return s, ok
}

func (t Transition) action() access.Action {
	switch t {
	case TransitionAcknowledge:
		return access.ActionAcknowledge
	case TransitionRespond:
		return access.ActionRespond
	case TransitionResolve:
		return access.ActionResolve
	case TransitionFalseAlarm:
		return access.ActionFalseAlarm
	default:
		return access.ActionCancel
	}
}

// CanTransition from -> to 是否合法
func CanTransition(from, to models.AlertStatus) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Input 迁移参数
type Input struct {
	Operator string
	Notes    string
}

// Apply 校验并原地修改报警，不做任何 IO。失败时报警保持不变。
func Apply(a *models.Alert, t Transition, in Input, now time.Time) error {
	to, ok := t.Target()
	if !ok {
		return apperrors.Malformed("unknown transition " + string(t))
	}
	if !CanTransition(a.Status, to) {
		return apperrors.WithCodef(apperrors.CodeIllegalTransition, "cannot %s alert in status %s", t, a.Status)
	}

	a.Status = to
	a.UpdatedAt = now
	switch t {
	case TransitionAcknowledge:
		a.AcknowledgedAt = &now
		assign(a, in.Operator)
	case TransitionRespond:
		assign(a, in.Operator)
	case TransitionResolve:
		a.ResolvedAt = &now
		appendNotes(a, "Resolution", in.Notes)
	case TransitionFalseAlarm:
		a.ResolvedAt = &now
		appendNotes(a, "False alarm", in.Notes)
	case TransitionCancel:
		a.ResolvedAt = &now
	}
	return nil
}

func assign(a *models.Alert, operator string) {
	if operator != "" && a.AssignedOperator == "" {
		a.AssignedOperator = operator
	}
}

func appendNotes(a *models.Alert, label, notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return
	}
	entry := label + ": " + notes
	if a.OperatorNotes == "" {
		a.OperatorNotes = entry
		return
	}
	a.OperatorNotes += "\n\n" + entry
}
