package treeflow_test

import (
	"testing"

	"github.com/treeflow/treeflow"
)

func TestOpen(t *testing.T) {
	mgr, err := treeflow.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if mgr == nil {
		t.Error("expected non-nil manager")
	}
}

func TestStatusVocabulary(t *testing.T) {
	if !treeflow.StatusActive.CanTransitionTo(treeflow.StatusMerged) {
		t.Error("active -> merged should be legal")
	}
	if treeflow.StatusMerged.CanTransitionTo(treeflow.StatusRemoved) {
		t.Error("terminal states must be final")
	}
}
