package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the editorial workflow state of an article.
type Status string

const (
	StatusVoid      Status = "void"
	StatusEditable  Status = "editable"
	StatusAssigned  Status = "assigned"
	StatusEdited    Status = "edited"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
	StatusJunk      Status = "junk"
	StatusWorthless Status = "worthless"
)

var allStatuses = []Status{
	StatusVoid, StatusEditable, StatusAssigned, StatusEdited, StatusApproved,
	StatusRejected, StatusPublished, StatusJunk, StatusWorthless,
}

// ParseStatus rejects anything outside the closed set.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// RequiresEditor reports whether articles in this status carry an assigned editor.
func (s Status) RequiresEditor() bool {
	switch s {
	case StatusAssigned, StatusEdited, StatusRejected:
		return true
	default:
		return false
	}
}

// ForbidsEditor reports whether articles in this status must not carry an editor.
func (s Status) ForbidsEditor() bool {
	switch s {
	case StatusVoid, StatusEditable, StatusJunk, StatusWorthless:
		return true
	default:
		return false
	}
}

// Triage reports whether the status is still in the pre-assignment stage.
func (s Status) Triage() bool {
	return s == StatusVoid || s == StatusEditable
}

// Capability is a role-derived permission held by an actor.
type Capability string

const (
	CapChief      Capability = "chief"
	CapMonitoring Capability = "monitoring"
	CapEditor     Capability = "editor"
	CapSuperuser  Capability = "superuser"
	// CapSystem is held only by background tasks (CMS sync).
	CapSystem Capability = "system"
)

// ParseCapability validates a capability name.
func ParseCapability(value string) (Capability, error) {
	switch c := Capability(strings.ToLower(strings.TrimSpace(value))); c {
	case CapChief, CapMonitoring, CapEditor, CapSuperuser:
		return c, nil
	default:
		return "", fmt.Errorf("unknown capability %q", value)
	}
}

// Actor is whoever invokes an editorial action.
type Actor struct {
	ID           int64
	Capabilities []Capability
}

// SystemActor is used by scheduled tasks.
var SystemActor = Actor{Capabilities: []Capability{CapSystem}}

// Has reports whether the actor holds c. Superusers hold chief.
func (a Actor) Has(c Capability) bool {
	for _, held := range a.Capabilities {
		if held == c || (held == CapSuperuser && c == CapChief) {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition is wrapped when the current status does not allow the move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden is wrapped when the actor lacks the capability for the move.
	ErrForbidden = errors.New("action not permitted")
)

type transition struct {
	from, to Status
}

type rule struct {
	caps []Capability
	// assignee requires the actor to be the article's assigned editor.
	assignee bool
}

// transitions is the only place status moves are defined.
var transitions = map[transition]rule{
	{StatusVoid, StatusEditable}:  {caps: []Capability{CapMonitoring, CapChief}},
	{StatusVoid, StatusJunk}:      {caps: []Capability{CapMonitoring, CapChief}},
	{StatusVoid, StatusWorthless}: {caps: []Capability{CapMonitoring}},

	{StatusEditable, StatusAssigned}:  {caps: []Capability{CapChief}},
	{StatusEditable, StatusJunk}:      {caps: []Capability{CapChief, CapMonitoring}},
	{StatusEditable, StatusWorthless}: {caps: []Capability{CapMonitoring}},
	{StatusEditable, StatusEditable}:  {caps: []Capability{CapMonitoring}},

	{StatusJunk, StatusEditable}: {caps: []Capability{CapMonitoring}},

	{StatusAssigned, StatusEdited}:   {caps: []Capability{CapEditor}, assignee: true},
	{StatusAssigned, StatusRejected}: {caps: []Capability{CapChief}},
	{StatusAssigned, StatusJunk}:     {caps: []Capability{CapChief, CapMonitoring}},

	{StatusEdited, StatusApproved}: {caps: []Capability{CapChief}},
	{StatusEdited, StatusRejected}: {caps: []Capability{CapChief}},
	{StatusEdited, StatusJunk}:     {caps: []Capability{CapChief, CapMonitoring}},

	{StatusRejected, StatusAssigned}: {caps: []Capability{CapChief}},
	{StatusRejected, StatusEditable}: {caps: []Capability{CapChief}},
	{StatusRejected, StatusJunk}:     {caps: []Capability{CapChief, CapMonitoring}},

	{StatusApproved, StatusPublished}: {caps: []Capability{CapSystem}},
}

// CanTransition reports whether from -> to exists in the table, regardless of actor.
func CanTransition(from, to Status) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// TransitionError explains why one article could not be moved.
type TransitionError struct {
	ArticleID int64
	From      Status
	To        Status
	Err       error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrForbidden) {
		return fmt.Sprintf("article %d: not permitted to change status from %s to %s", e.ArticleID, e.From, e.To)
	}
	return fmt.Sprintf("article %d: cannot change status to %s, current status is %s",
		e.ArticleID, e.To, strings.ToUpper(string(e.From)))
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// CheckTransition validates that actor may move article to the target status.
func CheckTransition(actor Actor, article *Article, to Status) error {
	r, ok := transitions[transition{article.Status, to}]
	if !ok {
		return &TransitionError{ArticleID: article.ID, From: article.Status, To: to, Err: ErrInvalidTransition}
	}

	allowed := false
	for _, c := range r.caps {
		if actor.Has(c) {
			allowed = true
			break
		}
	}
	if allowed && r.assignee && !article.AssignedTo(actor.ID) {
		allowed = false
	}
	if !allowed {
		return &TransitionError{ArticleID: article.ID, From: article.Status, To: to, Err: ErrForbidden}
	}
	return nil
}

// ActionResult is the per-article outcome of an editorial action.
type ActionResult struct {
	ArticleID int64  `json:"article_id"`
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
}
