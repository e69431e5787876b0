package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	t.Parallel()

	editorID := int64(7)
	otherID := int64(8)
	chief := Actor{ID: 1, Capabilities: []Capability{CapChief}}
	monitor := Actor{ID: 2, Capabilities: []Capability{CapMonitoring}}
	super := Actor{ID: 3, Capabilities: []Capability{CapSuperuser}}
	editor := Actor{ID: editorID, Capabilities: []Capability{CapEditor}}
	stranger := Actor{ID: otherID, Capabilities: []Capability{CapEditor}}

	tests := []struct {
		name    string
		actor   Actor
		from    Status
		to      Status
		editor  *int64
		wantErr error
	}{
		{name: "chief assigns editable", actor: chief, from: StatusEditable, to: StatusAssigned},
		{name: "superuser acts as chief", actor: super, from: StatusEditable, to: StatusAssigned},
		{name: "monitor cannot assign", actor: monitor, from: StatusEditable, to: StatusAssigned, wantErr: ErrForbidden},
		{name: "assign from assigned", actor: chief, from: StatusAssigned, to: StatusAssigned, wantErr: ErrInvalidTransition},
		{name: "assign from junk", actor: chief, from: StatusJunk, to: StatusAssigned, wantErr: ErrInvalidTransition},
		{name: "assigned editor submits", actor: editor, from: StatusAssigned, to: StatusEdited, editor: &editorID},
		{name: "other editor cannot submit", actor: stranger, from: StatusAssigned, to: StatusEdited, editor: &editorID, wantErr: ErrForbidden},
		{name: "chief cannot submit edit", actor: chief, from: StatusAssigned, to: StatusEdited, editor: &editorID, wantErr: ErrForbidden},
		{name: "monitor junks edited", actor: monitor, from: StatusEdited, to: StatusJunk},
		{name: "monitor reopens junk", actor: monitor, from: StatusJunk, to: StatusEditable},
		{name: "chief cannot reopen junk", actor: chief, from: StatusJunk, to: StatusEditable, wantErr: ErrForbidden},
		{name: "worthless is terminal", actor: monitor, from: StatusWorthless, to: StatusEditable, wantErr: ErrInvalidTransition},
		{name: "published never regresses", actor: SystemActor, from: StatusPublished, to: StatusApproved, wantErr: ErrInvalidTransition},
		{name: "system publishes approved", actor: SystemActor, from: StatusApproved, to: StatusPublished},
		{name: "chief cannot publish directly", actor: chief, from: StatusApproved, to: StatusPublished, wantErr: ErrForbidden},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			article := &Article{ID: 42, Status: tc.from, EditorID: tc.editor}
			err := CheckTransition(tc.actor, article, tc.to)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransitionErrorNamesArticleAndStatus(t *testing.T) {
	t.Parallel()

	err := CheckTransition(Actor{Capabilities: []Capability{CapChief}}, &Article{ID: 9, Status: StatusAssigned}, StatusAssigned)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "9") || !strings.Contains(msg, "ASSIGNED") {
		t.Fatalf("message should name id and status: %s", msg)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if s, err := ParseStatus(" Junk "); err != nil || s != StatusJunk {
		t.Fatalf("unexpected parse result %q, %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDraftImageName(t *testing.T) {
	t.Parallel()

	d := Draft{ImageURL: "https://cdn.example.org/files/a/b/photo.jpg?w=300"}
	if got := d.ImageName(); got != "photo.jpg" {
		t.Fatalf("unexpected image name %q", got)
	}
	if got := (Draft{}).ImageName(); got != "cover" {
		t.Fatalf("unexpected default name %q", got)
	}
}
